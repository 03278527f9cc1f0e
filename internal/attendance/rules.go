package attendance

import "time"

// StandardShiftMinutes is the fixed length of a working day.
const StandardShiftMinutes = 9 * 60

// threshold is an inclusive clock-minute upper bound and the minutes charged up to it.
type threshold struct {
	upTo    int
	minutes int
}

func clock(h, m int) int { return h*60 + m }

var (
	lateSteps = []threshold{
		{clock(8, 16), 0},
		{clock(8, 30), 30},
		{clock(9, 10), 60},
	}
	extraSteps = []threshold{
		{clock(18, 15), 0},
		{clock(18, 30), 30},
		{clock(19, 0), 60},
	}
)

// stepMinutes charges by bucket, never interpolating; seconds are ignored.
func stepMinutes(steps []threshold, t time.Time) int {
	m := clock(t.Hour(), t.Minute())
	for _, s := range steps {
		if m <= s.upTo {
			return s.minutes
		}
	}
	return 90
}

// LateMinutes classifies the first punch of a day against shift start.
func LateMinutes(firstPunch time.Time) int {
	return stepMinutes(lateSteps, firstPunch)
}

// ExtraMinutes classifies the last punch of a day against shift end.
func ExtraMinutes(lastPunch time.Time) int {
	return stepMinutes(extraSteps, lastPunch)
}

// WorkMinutes is the standard shift adjusted for lateness and overtime. It is
// not clamped, so bad punch data shows up as an implausible value.
func WorkMinutes(late, extra int) int {
	return StandardShiftMinutes - late + extra
}

// IsRestDay reports the weekly rest days, Friday and Saturday.
func IsRestDay(d time.Weekday) bool {
	return d == time.Friday || d == time.Saturday
}
