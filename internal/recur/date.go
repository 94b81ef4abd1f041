package recur

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date is a calendar date with no time-of-day and no timezone.
//
// Internally it is a day number counted from 1970-01-01, so day arithmetic
// is plain int64 math and cannot drift with DST or intraday execution time.
// The zero value is 1970-01-01.
type Date struct {
	days int64
}

// NewDate builds a Date and rejects values that do not name a real
// calendar day (e.g. 2023-02-30).
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d is not a calendar date", ErrInvalidDate, year, int(month), day)
	}
	return Date{days: t.Unix() / secondsPerDay}, nil
}

// MustDate is NewDate for literals in tests and defaults. It panics on an
// invalid date.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{days: t.Unix() / secondsPerDay}, nil
}

// DateOf returns the wall-clock date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date{days: u.Unix() / secondsPerDay}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Unix(d.days*secondsPerDay, 0).UTC()
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	y, m, day := d.Time().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int64) Date { return Date{days: d.days + n} }

// DaysSince returns the number of whole calendar days from other to d.
// It is negative when d is before other.
func (d Date) DaysSince(other Date) int64 { return d.days - other.days }

func (d Date) Before(other Date) bool { return d.days < other.days }
func (d Date) After(other Date) bool  { return d.days > other.days }
func (d Date) Equal(other Date) bool  { return d.days == other.days }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) String() string { return d.Time().Format(DateLayout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
