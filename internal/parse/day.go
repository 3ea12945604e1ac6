package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used across the API and the worklist.
const DayLayout = "2006-01-02"

var dayRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// Day is a calendar day in the hotel's timezone, formatted as DayLayout.
// Days compare correctly as strings.
type Day string

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(DayLayout))
}

// ParseDay accepts "2006-01-02" or any RFC3339 timestamp. A timestamp is
// converted into loc before its day is taken.
func ParseDay(raw string, loc *time.Location) (Day, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty day")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return DayOf(ts, loc), nil
	}
	m := dayRe.FindStringSubmatch(s)
	if m == nil || len(s) != len(DayLayout) {
		return "", fmt.Errorf("unable to parse day: %q", raw)
	}
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("unable to parse day %q: %w", raw, err)
	}
	return Day(s), nil
}

// Start returns midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Day) String() string { return string(d) }
