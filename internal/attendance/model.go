package attendance

import "time"

// Punch is one badge or camera event as recorded by a device.
type Punch struct {
	ID           string
	EmployeeCode string
	DeviceID     string
	At           time.Time
	Status       string
	CreatedAt    time.Time
}

// Punch processing states.
const (
	PunchPending  = "pending"
	PunchAccepted = "accepted"
	PunchRejected = "rejected"
)

// DayStatus classifies a calendar day of the ledger.
type DayStatus string

const (
	StatusPresent    DayStatus = "Present"
	StatusAbsent     DayStatus = "Absent"
	StatusWeekend    DayStatus = "Weekend"
	StatusIncomplete DayStatus = "Incomplete"
)

// DayRecord is the grouping of one calendar day's punches.
type DayRecord struct {
	Date       time.Time
	DayOfWeek  time.Weekday
	FirstPunch *time.Time
	LastPunch  *time.Time
	PunchCount int
	Status     DayStatus
}

// AttendanceDay is a DayRecord with its shift accounting.
type AttendanceDay struct {
	DayRecord
	LateMinutes  int
	ExtraMinutes int
	WorkMinutes  int
}

// PeriodSummary aggregates every AttendanceDay of a period.
type PeriodSummary struct {
	TotalDays         int
	PresentDays       int
	AbsentDays        int
	WeekendDays       int
	IncompleteDays    int
	TotalLateMinutes  int
	TotalExtraMinutes int
	TotalWorkMinutes  int
}

// Report is the reconciled ledger for one employee and payroll period.
type Report struct {
	EmployeeCode string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Summary      PeriodSummary
	Days         []AttendanceDay
}

// BoardEntry is one employee's line on the daily board.
type BoardEntry struct {
	EmployeeCode string
	FirstPunch   time.Time
	LastPunch    time.Time
	PunchCount   int
	Status       DayStatus
	LateMinutes  int
}
