package attendance

import (
	"sort"
	"time"

	"opsreport/internal/period"
)

const dateKey = "2006-01-02"

// Reconcile turns one employee's punches into a ledger covering every day of w.
// Punches may be unsorted; those outside w are ignored. Days are bucketed by
// calendar date in w's location. The result depends only on the arguments.
func Reconcile(employeeCode string, w period.Window, punches []Punch) Report {
	loc := w.Start.Location()
	byDay := groupByDate(punches, w, loc)

	days := w.Days()
	report := Report{
		EmployeeCode: employeeCode,
		PeriodStart:  w.Start,
		PeriodEnd:    w.End,
		Days:         make([]AttendanceDay, 0, len(days)),
	}
	for _, d := range days {
		day := reconcileDay(d, byDay[d.Format(dateKey)])
		report.Summary.add(day)
		report.Days = append(report.Days, day)
	}
	return report
}

// groupByDate sorts in-window punch times ascending and buckets them by local date.
func groupByDate(punches []Punch, w period.Window, loc *time.Location) map[string][]time.Time {
	times := make([]time.Time, 0, len(punches))
	for _, p := range punches {
		if w.Contains(p.At) {
			times = append(times, p.At.In(loc))
		}
	}
	sort.SliceStable(times, func(i, j int) bool { return times[i].Before(times[j]) })

	byDay := make(map[string][]time.Time)
	for _, t := range times {
		k := t.Format(dateKey)
		byDay[k] = append(byDay[k], t)
	}
	return byDay
}

// reconcileDay classifies one day given its ascending punch times.
func reconcileDay(date time.Time, times []time.Time) AttendanceDay {
	day := AttendanceDay{DayRecord: DayRecord{
		Date:       date,
		DayOfWeek:  date.Weekday(),
		PunchCount: len(times),
	}}
	if len(times) > 0 {
		first, last := times[0], times[len(times)-1]
		day.FirstPunch = &first
		day.LastPunch = &last
	}

	switch {
	case IsRestDay(day.DayOfWeek):
		day.Status = StatusWeekend
	case len(times) == 0:
		day.Status = StatusAbsent
	case sameMinute(*day.FirstPunch, *day.LastPunch):
		// One effective punch: nothing to measure, so late, extra and work stay zero.
		day.Status = StatusIncomplete
	default:
		day.Status = StatusPresent
		day.LateMinutes = LateMinutes(*day.FirstPunch)
		day.ExtraMinutes = ExtraMinutes(*day.LastPunch)
		day.WorkMinutes = WorkMinutes(day.LateMinutes, day.ExtraMinutes)
	}
	return day
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func (s *PeriodSummary) add(d AttendanceDay) {
	s.TotalDays++
	switch d.Status {
	case StatusPresent:
		s.PresentDays++
	case StatusAbsent:
		s.AbsentDays++
	case StatusWeekend:
		s.WeekendDays++
	case StatusIncomplete:
		s.IncompleteDays++
	}
	s.TotalLateMinutes += d.LateMinutes
	s.TotalExtraMinutes += d.ExtraMinutes
	s.TotalWorkMinutes += d.WorkMinutes
}

// Board builds the daily board for the punches of a single day, one entry per
// employee ordered by employee code.
func Board(day period.Window, punches []Punch) []BoardEntry {
	loc := day.Start.Location()
	byEmployee := make(map[string][]time.Time)
	for _, p := range punches {
		if day.Contains(p.At) {
			byEmployee[p.EmployeeCode] = append(byEmployee[p.EmployeeCode], p.At.In(loc))
		}
	}

	codes := make([]string, 0, len(byEmployee))
	for code := range byEmployee {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	entries := make([]BoardEntry, 0, len(codes))
	for _, code := range codes {
		times := byEmployee[code]
		sort.SliceStable(times, func(i, j int) bool { return times[i].Before(times[j]) })
		d := reconcileDay(day.Start, times)
		entry := BoardEntry{
			EmployeeCode: code,
			FirstPunch:   *d.FirstPunch,
			LastPunch:    *d.LastPunch,
			PunchCount:   d.PunchCount,
			Status:       d.Status,
			LateMinutes:  d.LateMinutes,
		}
		entries = append(entries, entry)
	}
	return entries
}
