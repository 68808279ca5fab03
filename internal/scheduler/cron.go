package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpr represents a parsed cron expression (minute, hour, day-of-month, month, day-of-week).
type CronExpr struct {
	Minutes     []bool
	Hours       []bool
	DaysOfMonth []bool
	Months      []bool
	DaysOfWeek  []bool
}

var macros = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

// ParseCron parses a standard 5-field cron expression or one of the @hourly, @daily, @midnight,
// @weekly and @monthly macros. Day-of-week 7 is Sunday, like 0.
func ParseCron(expr string) (*CronExpr, error) {
	if m, ok := macros[strings.TrimSpace(expr)]; ok {
		expr = m
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var c CronExpr
	specs := []struct {
		name     string
		dst      *[]bool
		min, max int
	}{
		{"minute", &c.Minutes, 0, 59},
		{"hour", &c.Hours, 0, 23},
		{"day-of-month", &c.DaysOfMonth, 1, 31},
		{"month", &c.Months, 1, 12},
		{"day-of-week", &c.DaysOfWeek, 0, 7},
	}
	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("%s field: %w", spec.name, err)
		}
		*spec.dst = set
	}
	if c.DaysOfWeek[7] {
		c.DaysOfWeek[0] = true
	}
	return &c, nil
}

// Matches returns true if the given time matches the cron expression.
func (c *CronExpr) Matches(t time.Time) bool {
	return c.Minutes[t.Minute()] &&
		c.Hours[t.Hour()] &&
		c.DaysOfMonth[t.Day()] &&
		c.Months[int(t.Month())] &&
		c.DaysOfWeek[int(t.Weekday())]
}

// Next returns the first minute after t the expression matches, or the zero time if there is none
// within five years.
func (c *CronExpr) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	end := t.AddDate(5, 0, 0)
	for next.Before(end) {
		if c.Matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

// parseField parses a single cron field (supports *, */n, n, n-m, n-m/s, comma-separated) into
// a set indexed by value.
func parseField(field string, min, max int) ([]bool, error) {
	set := make([]bool, max+1)
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, min, max, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parsePart(part string, min, max int, set []bool) error {
	lo, hi, step := min, max, 1

	rangePart, stepPart, hasStep := strings.Cut(part, "/")
	if hasStep {
		s, err := strconv.Atoi(stepPart)
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step: %s", part)
		}
		step = s
	}

	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		from, to, _ := strings.Cut(rangePart, "-")
		var err error
		if lo, err = strconv.Atoi(from); err != nil {
			return fmt.Errorf("invalid range start: %s", from)
		}
		if hi, err = strconv.Atoi(to); err != nil {
			return fmt.Errorf("invalid range end: %s", to)
		}
		if lo > hi {
			return fmt.Errorf("invalid range: %s", rangePart)
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value: %s", rangePart)
		}
		lo, hi = v, v
		if hasStep {
			hi = max
		}
	}

	if lo < min || hi > max {
		return fmt.Errorf("%s out of range %d-%d", part, min, max)
	}
	for i := lo; i <= hi; i += step {
		set[i] = true
	}
	return nil
}
