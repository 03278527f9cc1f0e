package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"opsreport/internal/metrics"
)

type fakeStore struct {
	punches   []Punch
	err       error
	calls     int
	inserted  []Punch
	devices   []string
	lastFrom  time.Time
	lastTo    time.Time
	lastSince time.Time
}

func (f *fakeStore) PunchesBetween(_ context.Context, code string, from, to time.Time) ([]Punch, error) {
	f.calls++
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []Punch
	for _, p := range f.punches {
		if p.EmployeeCode == code {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PunchesOn(_ context.Context, from, to time.Time) ([]Punch, error) {
	f.calls++
	f.lastFrom, f.lastTo = from, to
	return f.punches, f.err
}

func (f *fakeStore) RecentPunch(_ context.Context, code, device string, since time.Time) (*Punch, error) {
	f.lastSince = since
	if f.err != nil {
		return nil, f.err
	}
	for i := len(f.inserted) - 1; i >= 0; i-- {
		p := f.inserted[i]
		if p.EmployeeCode == code && p.DeviceID == device && !p.At.Before(since) {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertPunch(_ context.Context, p Punch) (Punch, error) {
	if f.err != nil {
		return Punch{}, f.err
	}
	p.ID = "punch-" + p.EmployeeCode
	f.inserted = append(f.inserted, p)
	return p, nil
}

func (f *fakeStore) UpsertDevice(_ context.Context, deviceID string) error {
	if f.err != nil {
		return f.err
	}
	f.devices = append(f.devices, deviceID)
	return nil
}

func TestService_MonthlyReport_Success(t *testing.T) {
	store := &fakeStore{punches: []Punch{
		{EmployeeCode: "1001", At: at(2025, 11, 3, 8, 20)},
		{EmployeeCode: "1001", At: at(2025, 11, 3, 17, 50)},
		{EmployeeCode: "2002", At: at(2025, 11, 3, 7, 0)},
	}}
	svc := NewService(store, riyadh, time.Minute, zap.NewNop(), metrics.New(prometheus.NewRegistry()))

	report, err := svc.MonthlyReport(context.Background(), "1001", 2025, 11)

	require.NoError(t, err)
	assert.Equal(t, at(2025, 10, 23, 0, 0), store.lastFrom)
	assert.Equal(t, time.Date(2025, 11, 22, 23, 59, 59, 999999999, riyadh), store.lastTo)
	assert.Len(t, report.Days, 31)
	assert.Equal(t, 1, report.Summary.PresentDays)
	assert.Equal(t, 510, report.Summary.TotalWorkMinutes)
}

func TestService_MonthlyReport_ValidationBeforeQuery(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		year  int
		month int
		field string
	}{
		{"empty code", "", 2025, 11, "employee_code"},
		{"non numeric code", "abc", 2025, 11, "employee_code"},
		{"negative code", "-5", 2025, 11, "employee_code"},
		{"zero code", "0", 2025, 11, "employee_code"},
		{"year too small", "1001", 1999, 11, "year"},
		{"year too large", "1001", 2101, 11, "year"},
		{"month zero", "1001", 2025, 0, "month"},
		{"month thirteen", "1001", 2025, 13, "month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewService(store, riyadh, time.Minute, nil, nil)

			_, err := svc.MonthlyReport(context.Background(), tt.code, tt.year, tt.month)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidation(err))
			assert.Zero(t, store.calls)
		})
	}
}

func TestService_MonthlyReport_DataSourceError(t *testing.T) {
	cause := errors.New("connection refused")
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewService(&fakeStore{err: cause}, riyadh, time.Minute, zap.New(core), nil)

	report, err := svc.MonthlyReport(context.Background(), "1001", 2025, 11)

	var dse *DataSourceError
	require.True(t, errors.As(err, &dse))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsValidation(err))
	assert.Empty(t, report.Days)
	assert.Equal(t, 1, logs.Len())
}

func TestService_MonthlyReport_MissingTable(t *testing.T) {
	svc := NewService(&fakeStore{err: ErrPeriodTableMissing}, riyadh, time.Minute, nil, nil)

	_, err := svc.MonthlyReport(context.Background(), "1001", 2030, 1)

	assert.ErrorIs(t, err, ErrPeriodTableMissing)
}

func TestService_DailyBoard(t *testing.T) {
	store := &fakeStore{punches: []Punch{
		{EmployeeCode: "1001", At: at(2025, 11, 3, 8, 0)},
		{EmployeeCode: "1001", At: at(2025, 11, 3, 17, 0)},
	}}
	svc := NewService(store, riyadh, time.Minute, nil, nil)

	w, entries, err := svc.DailyBoard(context.Background(), time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, at(2025, 11, 3, 0, 0), w.Start)
	assert.Equal(t, w.Start, store.lastFrom)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusPresent, entries[0].Status)
}

func TestService_RecordPunch_Dedup(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, riyadh, time.Minute, nil, nil)
	ctx := context.Background()
	first := at(2025, 11, 3, 8, 0)

	p, dup, err := svc.RecordPunch(ctx, "1001", "gate-1", first)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, PunchPending, p.Status)
	assert.Equal(t, time.UTC, p.At.Location())

	again, dup, err := svc.RecordPunch(ctx, "1001", "gate-1", first.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, first.Add(-30*time.Second), store.lastSince)

	_, dup, err = svc.RecordPunch(ctx, "1001", "gate-1", first.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Len(t, store.inserted, 2)
}

func TestService_RecordPunch_DefaultsToNow(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, riyadh, time.Minute, nil, nil)
	fixed := time.Date(2025, 11, 3, 5, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, _, err := svc.RecordPunch(context.Background(), "1001", "gate-1", time.Time{})

	require.NoError(t, err)
	assert.Equal(t, fixed, p.At)
}

func TestService_RecordPunch_Validation(t *testing.T) {
	svc := NewService(&fakeStore{}, riyadh, time.Minute, nil, nil)

	_, _, err := svc.RecordPunch(context.Background(), "x1", "gate-1", time.Now())
	assert.True(t, IsValidation(err))

	_, _, err = svc.RecordPunch(context.Background(), "1001", " ", time.Now())
	assert.True(t, IsValidation(err))
}

func TestService_RegisterDevice(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, riyadh, time.Minute, nil, nil)

	require.NoError(t, svc.RegisterDevice(context.Background(), "gate-1"))
	assert.Equal(t, []string{"gate-1"}, store.devices)
	assert.True(t, IsValidation(svc.RegisterDevice(context.Background(), "")))

	store.err = errors.New("down")
	var dse *DataSourceError
	assert.True(t, errors.As(svc.RegisterDevice(context.Background(), "gate-2"), &dse))
}

func TestParseYearMonth(t *testing.T) {
	y, m, err := ParseYearMonth("2025", "11")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 11, m)

	for _, in := range [][2]string{{"", "11"}, {"2025", ""}, {"twenty", "11"}, {"2025", "nov"}} {
		_, _, err := ParseYearMonth(in[0], in[1])
		assert.True(t, IsValidation(err), in)
	}
}
