// Package schedule parses five-field cron expressions into calendar predicates.
//
// Accepted field syntax is `*`, an integer literal, `*/N`, `A-B`, `A-B/N`, `A/N`
// and comma separated lists of those. Names, `?`, descriptors such as `@daily`
// and timezone prefixes are rejected.
//
// Day-of-month and weekday policy: a field is unrestricted when one of its list
// elements is a bare `*` (or `*/1`). When both fields are restricted a time
// matches if either of them matches; otherwise both must match. A stepped
// wildcard such as `*/2` counts as restricted.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// starBit marks a field written as a wildcard (robfig/cron convention).
const starBit = 1 << 63

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var fieldNames = [5]string{"minute", "hour", "day-of-month", "month", "weekday"}

// InvalidScheduleError is returned for any expression the parser rejects.
type InvalidScheduleError struct {
	Expr   string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Expr, e.Reason)
}

func invalid(expr, format string, args ...any) *InvalidScheduleError {
	return &InvalidScheduleError{Expr: expr, Reason: fmt.Sprintf(format, args...)}
}

// Schedule is an immutable predicate over minute ticks.
type Schedule struct {
	expr string
	spec *cron.SpecSchedule
}

// Parse validates expr and returns its predicate.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, invalid(expr, "expected exactly 5 fields, found %d", len(fields))
	}

	for i, field := range fields {
		if err := checkField(field); err != nil {
			return nil, invalid(expr, "%s field %q: %s", fieldNames[i], field, err)
		}
	}

	normalized := strings.Join(fields, " ")
	parsed, err := parser.Parse(normalized)
	if err != nil {
		return nil, invalid(expr, "%s", err)
	}

	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, invalid(expr, "unsupported schedule type %T", parsed)
	}

	return &Schedule{expr: normalized, spec: spec}, nil
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// checkField enforces the lexical grammar before robfig/cron sees the field,
// so its extensions (names, '?', descriptors) never leak through.
func checkField(field string) error {
	for _, elem := range strings.Split(field, ",") {
		if elem == "" {
			return fmt.Errorf("empty list element")
		}

		base, step, hasStep := strings.Cut(elem, "/")
		if hasStep {
			if !isNumber(step) {
				return fmt.Errorf("malformed step %q", elem)
			}
			if strings.TrimLeft(step, "0") == "" {
				return fmt.Errorf("step must be positive in %q", elem)
			}
		}

		if base == "*" {
			continue
		}

		low, high, isRange := strings.Cut(base, "-")
		if !isNumber(low) || (isRange && !isNumber(high)) {
			return fmt.Errorf("malformed element %q", elem)
		}
	}
	return nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns the normalized expression (fields separated by single spaces).
func (s *Schedule) String() string {
	return s.expr
}

// Matches reports whether t, interpreted in its own location, satisfies the predicate.
func (s *Schedule) Matches(t time.Time) bool {
	return s.MatchesFields(t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday()))
}

// MatchesFields evaluates the predicate against raw calendar fields.
func (s *Schedule) MatchesFields(minute, hour, day, month, weekday int) bool {
	if !has(s.spec.Minute, minute) || !has(s.spec.Hour, hour) || !has(s.spec.Month, month) {
		return false
	}

	domMatch := has(s.spec.Dom, day)
	dowMatch := has(s.spec.Dow, weekday)
	if s.spec.Dom&starBit > 0 || s.spec.Dow&starBit > 0 {
		return domMatch && dowMatch
	}
	return domMatch || dowMatch
}

// Next returns the first matching minute strictly after t, in t's location.
// The zero time is returned when nothing matches within five years.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.spec.Next(t)
}

func has(bits uint64, v int) bool {
	if v < 0 || v > 62 {
		return false
	}
	return bits&(1<<uint(v)) > 0
}
