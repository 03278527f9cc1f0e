package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownFilter is returned for filter names outside the supported set.
var ErrUnknownFilter = errors.New("unknown period filter")

// Filter names a predefined report range relative to "now".
type Filter string

const (
	Today     Filter = "today"
	Yesterday Filter = "yesterday"
	ThisWeek  Filter = "this_week"
	LastWeek  Filter = "last_week"
	ThisMonth Filter = "this_month"
	LastMonth Filter = "last_month"
	Current   Filter = "payroll"
)

var allFilters = []Filter{Today, Yesterday, ThisWeek, LastWeek, ThisMonth, LastMonth, Current}

// Filters lists every supported filter in display order.
func Filters() []Filter {
	out := make([]Filter, len(allFilters))
	copy(out, allFilters)
	return out
}

// ParseFilter maps a query value onto the enum. Empty input means Today.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Today, nil
	}
	for _, f := range allFilters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Range resolves the filter to a concrete window around now in loc.
// Weeks start on Sunday.
func (f Filter) Range(now time.Time, loc *time.Location) (Window, error) {
	today := startOfDay(now.In(loc))
	switch f {
	case Today:
		return DayWindow(today, loc), nil
	case Yesterday:
		return DayWindow(today.AddDate(0, 0, -1), loc), nil
	case ThisWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return Window{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}, nil
	case LastWeek:
		start := today.AddDate(0, 0, -int(today.Weekday())-7)
		return Window{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}, nil
	case ThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return Window{Start: start, End: endOfDay(start.AddDate(0, 1, -1))}, nil
	case LastMonth:
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, loc)
		return Window{Start: start, End: endOfDay(start.AddDate(0, 1, -1))}, nil
	case Current:
		return PayrollContaining(now, loc), nil
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownFilter, string(f))
	}
}
