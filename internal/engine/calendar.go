package engine

import (
	"sort"
	"time"
)

// maxResolveSteps bounds NextBusinessDate so that a calendar blocking every
// candidate date cannot loop forever.
const maxResolveSteps = 366

// DateOf returns the calendar date of t as midnight UTC. The year, month and
// day are read in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// addMonths adds months to date, clamping the day to the end of the target month
// (Jan 31 + 1 month is Feb 28, not Mar 3).
func addMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Calendar is a set of non-business dates.
type Calendar struct {
	days map[time.Time]struct{}
}

// NewCalendar creates a calendar holding the given holidays.
func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{days: make(map[time.Time]struct{}, len(holidays))}
	for _, h := range holidays {
		c.Add(h)
	}
	return c
}

// Add marks date as a holiday.
func (c *Calendar) Add(date time.Time) {
	if c.days == nil {
		c.days = make(map[time.Time]struct{})
	}
	c.days[DateOf(date)] = struct{}{}
}

// Contains reports whether date is a holiday. A nil calendar has no holidays.
func (c *Calendar) Contains(date time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.days[DateOf(date)]
	return ok
}

// Len returns the number of holidays.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.days)
}

// Dates returns the holidays in ascending order.
func (c *Calendar) Dates() []time.Time {
	if c == nil {
		return nil
	}
	out := make([]time.Time, 0, len(c.days))
	for d := range c.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// NextBusinessDate returns date itself when it is a business day, otherwise the
// first business day after it. Weekends count as non-business days only when
// skipWeekends is set.
func NextBusinessDate(date time.Time, cal *Calendar, skipWeekends bool) (time.Time, error) {
	candidate := DateOf(date)
	for step := 0; step <= maxResolveSteps; step++ {
		if !cal.Contains(candidate) && !(skipWeekends && isWeekend(candidate)) {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, newError("NextBusinessDate", ErrUnresolvableDate,
		"no business day within %d days after %s", maxResolveSteps, DateOf(date).Format(time.DateOnly))
}
