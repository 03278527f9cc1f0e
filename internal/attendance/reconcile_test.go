package attendance

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsreport/internal/period"
)

var riyadh = time.FixedZone("AST", 3*3600)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, riyadh)
}

func punchesAt(times ...time.Time) []Punch {
	out := make([]Punch, 0, len(times))
	for _, t := range times {
		out = append(out, Punch{EmployeeCode: "1001", DeviceID: "gate-1", At: t})
	}
	return out
}

func dayOf(t *testing.T, r Report, date string) AttendanceDay {
	t.Helper()
	for _, d := range r.Days {
		if d.Date.Format(dateKey) == date {
			return d
		}
	}
	t.Fatalf("day %s not in report", date)
	return AttendanceDay{}
}

func TestReconcile_CoversEveryDayOfPeriod(t *testing.T) {
	for _, tc := range []struct{ year, month int }{{2025, 11}, {2025, 1}, {2024, 3}, {2025, 3}, {2100, 12}} {
		w := period.Payroll(tc.year, tc.month, riyadh)
		r := Reconcile("1001", w, nil)

		want := int(w.End.Sub(w.Start).Hours()/24) + 1
		require.Len(t, r.Days, want, "%d-%02d", tc.year, tc.month)
		assert.Equal(t, want, r.Summary.TotalDays)
		for i := 1; i < len(r.Days); i++ {
			assert.True(t, r.Days[i].Date.After(r.Days[i-1].Date))
		}
	}
}

func TestReconcile_NoPunches(t *testing.T) {
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh), nil)

	assert.Equal(t, 31, r.Summary.TotalDays)
	assert.Equal(t, 10, r.Summary.WeekendDays)
	assert.Equal(t, 21, r.Summary.AbsentDays)
	assert.Zero(t, r.Summary.PresentDays)
	assert.Zero(t, r.Summary.TotalWorkMinutes)
}

func TestReconcile_WorkedExample(t *testing.T) {
	w := period.Payroll(2025, 11, riyadh)
	r := Reconcile("1001", w, punchesAt(at(2025, 11, 3, 18, 0), at(2025, 11, 3, 8, 20)))

	assert.Equal(t, at(2025, 10, 23, 0, 0), r.PeriodStart)
	d := dayOf(t, r, "2025-11-03")
	assert.Equal(t, StatusPresent, d.Status)
	assert.Equal(t, time.Monday, d.DayOfWeek)
	assert.Equal(t, 30, d.LateMinutes)
	assert.Equal(t, 0, d.ExtraMinutes)
	assert.Equal(t, 510, d.WorkMinutes)
	assert.Equal(t, "8:30", FormatHM(d.WorkMinutes))
	assert.Equal(t, 2, d.PunchCount)
	assert.Equal(t, at(2025, 11, 3, 8, 20), *d.FirstPunch)
	assert.Equal(t, at(2025, 11, 3, 18, 0), *d.LastPunch)

	assert.Equal(t, 1, r.Summary.PresentDays)
	assert.Equal(t, 20, r.Summary.AbsentDays)
	assert.Equal(t, 30, r.Summary.TotalLateMinutes)
	assert.Equal(t, 510, r.Summary.TotalWorkMinutes)
}

func TestReconcile_OvertimeAfterShiftEnd(t *testing.T) {
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh), punchesAt(
		at(2025, 11, 3, 8, 20), at(2025, 11, 3, 18, 16),
		at(2025, 11, 4, 8, 0), at(2025, 11, 4, 18, 31),
	))

	d := dayOf(t, r, "2025-11-03")
	assert.Equal(t, 30, d.LateMinutes)
	assert.Equal(t, 30, d.ExtraMinutes)
	assert.Equal(t, "9:00", FormatHM(d.WorkMinutes))

	d = dayOf(t, r, "2025-11-04")
	assert.Equal(t, 0, d.LateMinutes)
	assert.Equal(t, 60, d.ExtraMinutes)
	assert.Equal(t, "10:00", FormatHM(d.WorkMinutes))
}

func TestReconcile_WeekendIgnoresPunches(t *testing.T) {
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh),
		punchesAt(at(2025, 11, 7, 10, 0), at(2025, 11, 7, 20, 0), at(2025, 11, 8, 7, 0)))

	for _, date := range []string{"2025-11-07", "2025-11-08"} {
		d := dayOf(t, r, date)
		assert.Equal(t, StatusWeekend, d.Status, date)
		assert.Zero(t, d.LateMinutes)
		assert.Zero(t, d.ExtraMinutes)
		assert.Equal(t, "0:00", FormatHM(d.WorkMinutes))
	}
	assert.Equal(t, 2, dayOf(t, r, "2025-11-07").PunchCount)
}

func TestReconcile_IncompleteWhenSameMinute(t *testing.T) {
	first := at(2025, 11, 4, 8, 40)
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh),
		punchesAt(first, first.Add(20*time.Second)))

	d := dayOf(t, r, "2025-11-04")
	assert.Equal(t, StatusIncomplete, d.Status)
	assert.Equal(t, 2, d.PunchCount)
	assert.Zero(t, d.LateMinutes)
	assert.Zero(t, d.WorkMinutes)
	assert.Equal(t, 1, r.Summary.IncompleteDays)
}

func TestReconcile_BucketsByLocalDate(t *testing.T) {
	// 21:30 UTC on the 2nd is 00:30 on the 3rd in the deployment zone.
	early := time.Date(2025, 11, 2, 21, 30, 0, 0, time.UTC)
	late := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)

	r := Reconcile("1001", period.Payroll(2025, 11, riyadh), punchesAt(late, early))

	assert.Equal(t, StatusAbsent, dayOf(t, r, "2025-11-02").Status)
	d := dayOf(t, r, "2025-11-03")
	assert.Equal(t, StatusPresent, d.Status)
	assert.Equal(t, 0, d.LateMinutes)
	assert.Equal(t, 0, d.ExtraMinutes)
	assert.Equal(t, riyadh, d.FirstPunch.Location())
}

func TestReconcile_IgnoresPunchesOutsideWindow(t *testing.T) {
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh),
		punchesAt(at(2025, 10, 22, 9, 0), at(2025, 11, 23, 9, 0)))

	assert.Zero(t, r.Summary.PresentDays)
	assert.Zero(t, r.Summary.IncompleteDays)
}

func TestReconcile_Deterministic(t *testing.T) {
	w := period.Payroll(2025, 11, riyadh)
	punches := punchesAt(
		at(2025, 10, 26, 8, 10), at(2025, 10, 26, 18, 40),
		at(2025, 10, 27, 9, 30), at(2025, 10, 27, 12, 0), at(2025, 10, 27, 18, 20),
		at(2025, 11, 3, 8, 20), at(2025, 11, 3, 17, 50),
	)

	first, err := json.Marshal(Reconcile("1001", w, punches))
	require.NoError(t, err)

	shuffled := append([]Punch(nil), punches...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second, err := json.Marshal(Reconcile("1001", w, shuffled))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestReport_MarshalJSON(t *testing.T) {
	r := Reconcile("1001", period.Payroll(2025, 11, riyadh),
		punchesAt(at(2025, 11, 3, 8, 20), at(2025, 11, 3, 18, 0)))

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var body struct {
		EmployeeCode string `json:"employeeCode"`
		PeriodStart  string `json:"periodStart"`
		PeriodEnd    string `json:"periodEnd"`
		Summary      struct {
			PresentDays int    `json:"presentDays"`
			AbsentDays  int    `json:"absentDays"`
			TotalLate   string `json:"totalLate"`
			TotalWork   string `json:"totalWork"`
		} `json:"summary"`
		Days []struct {
			Date       string  `json:"date"`
			DayOfWeek  string  `json:"dayOfWeek"`
			Attendance *string `json:"attendance"`
			Leave      *string `json:"leave"`
			Status     string  `json:"status"`
			WorkHours  string  `json:"workHours"`
			TotalLogs  int     `json:"totalLogs"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "1001", body.EmployeeCode)
	assert.Equal(t, "2025-10-23", body.PeriodStart)
	assert.Equal(t, "2025-11-22", body.PeriodEnd)
	assert.Equal(t, 1, body.Summary.PresentDays)
	assert.Equal(t, "0:30", body.Summary.TotalLate)
	assert.Equal(t, "8:30", body.Summary.TotalWork)
	require.Len(t, body.Days, 31)

	for _, d := range body.Days {
		switch d.Status {
		case string(StatusAbsent):
			assert.Nil(t, d.Attendance, d.Date)
			assert.Nil(t, d.Leave, d.Date)
			assert.Zero(t, d.TotalLogs, d.Date)
		case string(StatusWeekend):
			assert.Equal(t, "0:00", d.WorkHours, d.Date)
		case string(StatusPresent):
			assert.Equal(t, "2025-11-03", d.Date)
			assert.Equal(t, "Monday", d.DayOfWeek)
			require.NotNil(t, d.Attendance)
			assert.Equal(t, "2025-11-03T08:20:00+03:00", *d.Attendance)
			assert.Equal(t, "8:30", d.WorkHours)
		}
	}
}

func TestBoard(t *testing.T) {
	day := period.DayWindow(at(2025, 11, 3, 12, 0), riyadh)
	punches := []Punch{
		{EmployeeCode: "1002", At: at(2025, 11, 3, 8, 45)},
		{EmployeeCode: "1001", At: at(2025, 11, 3, 18, 20)},
		{EmployeeCode: "1001", At: at(2025, 11, 3, 8, 5)},
		{EmployeeCode: "1003", At: at(2025, 11, 4, 8, 0)},
	}

	entries := Board(day, punches)

	require.Len(t, entries, 2)
	assert.Equal(t, "1001", entries[0].EmployeeCode)
	assert.Equal(t, StatusPresent, entries[0].Status)
	assert.Equal(t, at(2025, 11, 3, 8, 5), entries[0].FirstPunch)
	assert.Equal(t, 2, entries[0].PunchCount)
	assert.Equal(t, 0, entries[0].LateMinutes)

	assert.Equal(t, "1002", entries[1].EmployeeCode)
	assert.Equal(t, StatusIncomplete, entries[1].Status)
	assert.Zero(t, entries[1].LateMinutes)
}
