// Package period resolves the date ranges reports are computed over: the payroll
// window and the closed set of named report filters.
package period

import "time"

// Payroll cut-off: a period opens on this day of the previous month and closes
// on the day before it in the anchor month.
const (
	payrollOpenDay  = 23
	payrollCloseDay = 22
)

// Window is an inclusive time range. End is the last instant of its final day.
type Window struct {
	Start time.Time
	End   time.Time
}

// Payroll returns the payroll window anchored on year/month: the 23rd of the
// previous month 00:00:00 through the 22nd of month 23:59:59, in loc.
// January rolls back to December of the previous year.
func Payroll(year, month int, loc *time.Location) Window {
	return Window{
		Start: time.Date(year, time.Month(month)-1, payrollOpenDay, 0, 0, 0, 0, loc),
		End:   endOfDay(time.Date(year, time.Month(month), payrollCloseDay, 0, 0, 0, 0, loc)),
	}
}

// PayrollContaining returns the payroll window that t falls into.
func PayrollContaining(t time.Time, loc *time.Location) Window {
	local := t.In(loc)
	year, month := local.Year(), local.Month()
	if local.Day() >= payrollOpenDay {
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return Payroll(year, int(month), loc)
}

// Days returns local midnight for every calendar day in the window, in order.
func (w Window) Days() []time.Time {
	loc := w.Start.Location()
	first := startOfDay(w.Start)
	last := startOfDay(w.End.In(loc))

	var days []time.Time
	for d := first; !d.After(last); d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayWindow covers the single calendar day of t in loc.
func DayWindow(t time.Time, loc *time.Location) Window {
	start := startOfDay(t.In(loc))
	return Window{Start: start, End: endOfDay(start)}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
