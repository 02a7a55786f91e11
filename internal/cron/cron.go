package cron

import (
	"strconv"
	"strings"
	"time"

	"github.com/taskscheduler/core/internal/errs"
)

// maxHorizonYears bounds how far forward Next will walk before giving up.
// A valid 5-field expression always has a firing within this horizon; a
// longer search indicates an internal bug rather than a legitimately sparse
// schedule.
const maxHorizonYears = 4

// maxWalkSteps caps the number of field-advance iterations per Next call,
// independent of the calendar horizon check, as a defensive backstop.
const maxWalkSteps = 1_000_000

// Expression is a parsed, validated 5-field cron expression. The zero value
// is not usable; construct one with Parse.
type Expression struct {
	minutes uint64 // bits 0-59
	hours   uint64 // bits 0-23
	doms    uint64 // bits 1-31
	months  uint64 // bits 1-12
	dows    uint64 // bits 0-6, 0 = Sunday

	domWildcard bool
	dowWildcard bool

	raw string
}

// Parse parses a 5-field cron expression. Fields are separated by ASCII
// whitespace; there is no seconds field and no "@hourly"-style shorthand.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fieldError("expression", "expected 5 space-separated fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], minuteField)
	if err != nil {
		return nil, err
	}
	hours, err := parseField(fields[1], hourField)
	if err != nil {
		return nil, err
	}
	doms, err := parseField(fields[2], domField)
	if err != nil {
		return nil, err
	}
	months, err := parseField(fields[3], monthField)
	if err != nil {
		return nil, err
	}
	dows, err := parseField(fields[4], dowField)
	if err != nil {
		return nil, err
	}

	return &Expression{
		minutes:     minutes,
		hours:       hours,
		doms:        doms,
		months:      months,
		dows:        dows,
		domWildcard: strings.TrimSpace(fields[2]) == "*",
		dowWildcard: strings.TrimSpace(fields[4]) == "*",
		raw:         expr,
	}, nil
}

// String renders the expression's value-sets back into 5-field cron syntax.
// It need not reproduce the original text byte-for-byte, but Parse(e.String())
// always yields an Expression with identical value-sets (the round-trip law
// this package is tested against).
func (e *Expression) String() string {
	return strings.Join([]string{
		renderField(e.minutes, 0, 59),
		renderField(e.hours, 0, 23),
		renderField(e.doms, 1, 31),
		renderField(e.months, 1, 12),
		renderField(e.dows, 0, 6),
	}, " ")
}

func renderField(mask uint64, min, max int) string {
	if mask == fullMask(min, max) {
		return "*"
	}

	var vals []int
	for v := min; v <= max; v++ {
		if mask&(1<<uint(v)) != 0 {
			vals = append(vals, v)
		}
	}

	var parts []string
	for i := 0; i < len(vals); {
		j := i
		for j+1 < len(vals) && vals[j+1] == vals[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, strconv.Itoa(vals[i])+"-"+strconv.Itoa(vals[j]))
		} else {
			parts = append(parts, strconv.Itoa(vals[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

func (e *Expression) monthMatches(m time.Month) bool {
	return e.months&(1<<uint(m)) != 0
}

func (e *Expression) hourMatches(h int) bool {
	return e.hours&(1<<uint(h)) != 0
}

func (e *Expression) minuteMatches(m int) bool {
	return e.minutes&(1<<uint(m)) != 0
}

func (e *Expression) domMatches(d int) bool {
	return e.doms&(1<<uint(d)) != 0
}

func (e *Expression) dowMatches(w time.Weekday) bool {
	// Go's time.Weekday numbers Sunday 0 .. Saturday 6, matching the spec directly.
	return e.dows&(1<<uint(w)) != 0
}

// dayMatches implements the day-of-month / day-of-week union rule: when
// both fields are explicit (non-wildcard), a day matches if EITHER
// matches; when one is wildcard, only the other constrains the day.
func (e *Expression) dayMatches(year int, month time.Month, day int) bool {
	domOk := e.domMatches(day)
	if e.domWildcard && e.dowWildcard {
		return true
	}
	if e.domWildcard {
		weekday := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday()
		return e.dowMatches(weekday)
	}
	if e.dowWildcard {
		return domOk
	}
	weekday := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday()
	return domOk || e.dowMatches(weekday)
}

// Next computes the smallest instant strictly after ref that satisfies the
// expression, evaluated in civil time within loc. It returns
// errs.ErrNoFutureFiring if no firing is found within a defensive 4-year
// horizon.
//
// DST handling: when an hour the expression selects does not exist on a
// date (a spring-forward gap, detected by time.Date normalizing it to a
// different wall clock), the firing moves to the first valid minute after
// the gap; an ambiguous fall-back civil time resolves to the earlier of its
// two occurrences.
func (e *Expression) Next(ref time.Time, loc *time.Location) (time.Time, error) {
	t := ref.In(loc).Truncate(time.Minute).Add(time.Minute)
	startYear := t.Year()

	for i := 0; i < maxWalkSteps; i++ {
		if t.Year()-startYear > maxHorizonYears {
			return time.Time{}, errs.ErrNoFutureFiring
		}

		if !e.monthMatches(t.Month()) {
			if nm, ok := nextBit(e.months, int(t.Month())+1, 12); ok {
				t = time.Date(t.Year(), time.Month(nm), 1, 0, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, loc)
			}
			continue
		}

		if !e.dayMatches(t.Year(), t.Month(), t.Day()) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}

		if !e.hourMatches(t.Hour()) {
			if nh, ok := nextBit(e.hours, t.Hour()+1, 23); ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), nh, 0, 0, 0, loc)
				if t.Hour() != nh { // hour nh lies in a spring-forward gap
					return time.Date(t.Year(), t.Month(), t.Day(), nh+1, 0, 0, 0, loc), nil
				}
			} else {
				t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			}
			continue
		}

		if !e.minuteMatches(t.Minute()) {
			if nmin, ok := nextBit(e.minutes, t.Minute()+1, 59); ok {
				t = t.Add(time.Duration(nmin-t.Minute()) * time.Minute)
			} else {
				h := t.Hour() + 1
				next := time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, loc)
				if !next.After(t) { // hour h lies in a spring-forward gap
					next = time.Date(t.Year(), t.Month(), t.Day(), h+1, 0, 0, 0, loc)
					if e.hourMatches(h) {
						return next, nil
					}
				}
				t = next
			}
			continue
		}

		// All fields match in the intended civil time. Verify the civil
		// time actually exists: a spring-forward gap makes time.Date
		// normalize to a different wall clock than requested.
		candidate := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if candidate.Year() != t.Year() || candidate.Month() != t.Month() || candidate.Day() != t.Day() ||
			candidate.Hour() != t.Hour() || candidate.Minute() != t.Minute() {
			t = candidate
			continue
		}

		return t, nil
	}

	return time.Time{}, errs.ErrNoFutureFiring
}

// Preview returns up to n (capped at 10) successive firings strictly after
// ref, in loc.
func (e *Expression) Preview(ref time.Time, loc *time.Location, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > 10 {
		n = 10
	}

	result := make([]time.Time, 0, n)
	cur := ref
	for i := 0; i < n; i++ {
		next, err := e.Next(cur, loc)
		if err != nil {
			return result, err
		}
		result = append(result, next)
		cur = next
	}
	return result, nil
}
