package datecalc

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the ISO calendar date format used for bucket keys and report dates.
const Layout = "2006-01-02"

// ErrInvalidDate is returned for strings that are not YYYY-MM-DD dates.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses an ISO date (YYYY-MM-DD) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q (want YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(Layout)
}

// Today returns the current local date as YYYY-MM-DD.
func Today() string {
	return FormatDate(time.Now())
}

// Interval returns the effective [start, end] range of a report stored under
// bucket. An empty start falls back to bucket, an empty end to start.
func Interval(start, end, bucket string) (time.Time, time.Time, error) {
	if start == "" {
		start = bucket
	}
	if end == "" {
		end = start
	}
	from, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// Contains reports whether day lies in [from, to], inclusive.
func Contains(from, to, day time.Time) bool {
	return !day.Before(from) && !day.After(to)
}

// Overlaps reports whether [aFrom, aTo] and [bFrom, bTo] share at least one day.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return !aTo.Before(bFrom) && !bTo.Before(aFrom)
}

// WeekRange returns the Monday and Sunday of the ISO week containing t, both
// at midnight.
func WeekRange(t time.Time) (time.Time, time.Time) {
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	monday := StartOfDay(t.AddDate(0, 0, -(wd - 1)))
	return monday, monday.AddDate(0, 0, 6)
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
