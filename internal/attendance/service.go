package attendance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"opsreport/internal/metrics"
	"opsreport/internal/period"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Store is the punch data access the service depends on.
type Store interface {
	PunchesBetween(ctx context.Context, employeeCode string, from, to time.Time) ([]Punch, error)
	PunchesOn(ctx context.Context, from, to time.Time) ([]Punch, error)
	RecentPunch(ctx context.Context, employeeCode, deviceID string, since time.Time) (*Punch, error)
	InsertPunch(ctx context.Context, p Punch) (Punch, error)
	UpsertDevice(ctx context.Context, deviceID string) error
}

// Service builds attendance reports and records punches.
type Service struct {
	store       Store
	loc         *time.Location
	dedupWindow time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewService creates a service that buckets days in loc.
func NewService(store Store, loc *time.Location, dedupWindow time.Duration, logger *zap.Logger, m *metrics.Metrics) *Service {
	if dedupWindow <= 0 {
		dedupWindow = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		loc:         loc,
		dedupWindow: dedupWindow,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// Location is the time zone days are bucketed in.
func (s *Service) Location() *time.Location { return s.loc }

// MonthlyReport reconciles an employee's punches for the payroll period anchored on year/month.
func (s *Service) MonthlyReport(ctx context.Context, employeeCode string, year, month int) (Report, error) {
	if err := ValidateReportRequest(employeeCode, year, month); err != nil {
		return Report{}, err
	}
	w := period.Payroll(year, month, s.loc)

	punches, err := s.store.PunchesBetween(ctx, employeeCode, w.Start, w.End)
	if err != nil {
		return Report{}, s.sourceError("list punches", err,
			zap.String("employee_code", employeeCode),
			zap.Int("year", year),
			zap.Int("month", month),
		)
	}

	report := Reconcile(employeeCode, w, punches)
	s.metrics.ReportBuilt("attendance")
	s.logger.Debug("attendance report built",
		zap.String("employee_code", employeeCode),
		zap.Int("punches", len(punches)),
		zap.Int("present_days", report.Summary.PresentDays),
	)
	return report, nil
}

// DailyBoard lists everyone who punched on the local calendar day of day.
func (s *Service) DailyBoard(ctx context.Context, day time.Time) (period.Window, []BoardEntry, error) {
	w := period.DayWindow(day, s.loc)
	punches, err := s.store.PunchesOn(ctx, w.Start, w.End)
	if err != nil {
		return w, nil, s.sourceError("list daily punches", err, zap.Time("day", w.Start))
	}
	s.metrics.ReportBuilt("daily_board")
	return w, Board(w, punches), nil
}

// RecordPunch stores a pending punch. A punch from the same employee and device
// inside the dedup window is returned instead, with duplicate set.
func (s *Service) RecordPunch(ctx context.Context, employeeCode, deviceID string, at time.Time) (p Punch, duplicate bool, err error) {
	if err := ValidateEmployeeCode(employeeCode); err != nil {
		return Punch{}, false, err
	}
	if strings.TrimSpace(deviceID) == "" {
		return Punch{}, false, &ValidationError{Field: "device_id", Message: "is required"}
	}
	if at.IsZero() {
		at = s.now()
	}

	recent, err := s.store.RecentPunch(ctx, employeeCode, deviceID, at.Add(-s.dedupWindow))
	if err != nil {
		return Punch{}, false, s.sourceError("find recent punch", err, zap.String("employee_code", employeeCode))
	}
	if recent != nil {
		return *recent, true, nil
	}

	p, err = s.store.InsertPunch(ctx, Punch{
		EmployeeCode: employeeCode,
		DeviceID:     deviceID,
		At:           at.UTC(),
		Status:       PunchPending,
	})
	if err != nil {
		return Punch{}, false, s.sourceError("insert punch", err, zap.String("employee_code", employeeCode))
	}
	return p, false, nil
}

// RegisterDevice validates and persists device metadata.
func (s *Service) RegisterDevice(ctx context.Context, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return &ValidationError{Field: "device_id", Message: "is required"}
	}
	if err := s.store.UpsertDevice(ctx, deviceID); err != nil {
		return s.sourceError("upsert device", err, zap.String("device_id", deviceID))
	}
	return nil
}

func (s *Service) sourceError(op string, err error, fields ...zap.Field) error {
	s.metrics.SourceError("attendance")
	s.logger.Error("attendance data source failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return &DataSourceError{Op: op, Err: err}
}

// ValidateEmployeeCode accepts positive decimal identifiers such as "1001".
func ValidateEmployeeCode(code string) error {
	if code == "" {
		return &ValidationError{Field: "employee_code", Message: "is required"}
	}
	n, err := strconv.ParseUint(code, 10, 63)
	if err != nil || n == 0 {
		return &ValidationError{Field: "employee_code", Message: "must be a positive integer"}
	}
	return nil
}

// ValidateReportRequest checks the employee code and the payroll anchor.
func ValidateReportRequest(employeeCode string, year, month int) error {
	if err := ValidateEmployeeCode(employeeCode); err != nil {
		return err
	}
	if year < minYear || year > maxYear {
		return &ValidationError{Field: "year", Message: "must be between 2000 and 2100"}
	}
	if month < 1 || month > 12 {
		return &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	return nil
}

// ParseYearMonth reads the query parameters of a report request.
func ParseYearMonth(yearStr, monthStr string) (year, month int, err error) {
	if yearStr == "" {
		return 0, 0, &ValidationError{Field: "year", Message: "is required"}
	}
	if monthStr == "" {
		return 0, 0, &ValidationError{Field: "month", Message: "is required"}
	}
	if year, err = strconv.Atoi(yearStr); err != nil {
		return 0, 0, &ValidationError{Field: "year", Message: "must be a number"}
	}
	if month, err = strconv.Atoi(monthStr); err != nil {
		return 0, 0, &ValidationError{Field: "month", Message: "must be a number"}
	}
	return year, month, nil
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
