package attendance

import (
	"encoding/json"
	"time"
)

type reportJSON struct {
	EmployeeCode string      `json:"employeeCode"`
	PeriodStart  string      `json:"periodStart"`
	PeriodEnd    string      `json:"periodEnd"`
	Summary      summaryJSON `json:"summary"`
	Days         []dayJSON   `json:"days"`
}

type summaryJSON struct {
	TotalDays         int    `json:"totalDays"`
	PresentDays       int    `json:"presentDays"`
	AbsentDays        int    `json:"absentDays"`
	WeekendDays       int    `json:"weekendDays"`
	IncompleteDays    int    `json:"incompleteDays"`
	TotalLateMinutes  int    `json:"totalLateMinutes"`
	TotalExtraMinutes int    `json:"totalExtraMinutes"`
	TotalWorkMinutes  int    `json:"totalWorkMinutes"`
	TotalLate         string `json:"totalLate"`
	TotalExtra        string `json:"totalExtra"`
	TotalWork         string `json:"totalWork"`
}

type dayJSON struct {
	Date         string    `json:"date"`
	DayOfWeek    string    `json:"dayOfWeek"`
	Attendance   *string   `json:"attendance"`
	Leave        *string   `json:"leave"`
	Status       DayStatus `json:"status"`
	LateMinutes  int       `json:"lateMinutes"`
	ExtraMinutes int       `json:"extraMinutes"`
	WorkHours    string    `json:"workHours"`
	WorkMinutes  int       `json:"workMinutes"`
	TotalLogs    int       `json:"totalLogs"`
}

type boardEntryJSON struct {
	EmployeeCode string    `json:"employeeCode"`
	Attendance   string    `json:"attendance"`
	Leave        string    `json:"leave"`
	TotalLogs    int       `json:"totalLogs"`
	Status       DayStatus `json:"status"`
	LateMinutes  int       `json:"lateMinutes"`
}

// MarshalJSON renders the report with ISO dates and H:MM durations.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		EmployeeCode: r.EmployeeCode,
		PeriodStart:  r.PeriodStart.Format(dateKey),
		PeriodEnd:    r.PeriodEnd.Format(dateKey),
		Summary: summaryJSON{
			TotalDays:         r.Summary.TotalDays,
			PresentDays:       r.Summary.PresentDays,
			AbsentDays:        r.Summary.AbsentDays,
			WeekendDays:       r.Summary.WeekendDays,
			IncompleteDays:    r.Summary.IncompleteDays,
			TotalLateMinutes:  r.Summary.TotalLateMinutes,
			TotalExtraMinutes: r.Summary.TotalExtraMinutes,
			TotalWorkMinutes:  r.Summary.TotalWorkMinutes,
			TotalLate:         FormatHM(r.Summary.TotalLateMinutes),
			TotalExtra:        FormatHM(r.Summary.TotalExtraMinutes),
			TotalWork:         FormatHM(r.Summary.TotalWorkMinutes),
		},
		Days: make([]dayJSON, 0, len(r.Days)),
	}
	for _, d := range r.Days {
		out.Days = append(out.Days, dayJSON{
			Date:         d.Date.Format(dateKey),
			DayOfWeek:    d.DayOfWeek.String(),
			Attendance:   timestamp(d.FirstPunch),
			Leave:        timestamp(d.LastPunch),
			Status:       d.Status,
			LateMinutes:  d.LateMinutes,
			ExtraMinutes: d.ExtraMinutes,
			WorkHours:    FormatHM(d.WorkMinutes),
			WorkMinutes:  d.WorkMinutes,
			TotalLogs:    d.PunchCount,
		})
	}
	return json.Marshal(out)
}

// MarshalJSON renders a board line with RFC 3339 punch times.
func (e BoardEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(boardEntryJSON{
		EmployeeCode: e.EmployeeCode,
		Attendance:   e.FirstPunch.Format(time.RFC3339),
		Leave:        e.LastPunch.Format(time.RFC3339),
		TotalLogs:    e.PunchCount,
		Status:       e.Status,
		LateMinutes:  e.LateMinutes,
	})
}

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
