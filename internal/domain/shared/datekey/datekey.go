package datekey

import (
	"errors"
	"time"
)

var ErrInvalidKey = errors.New("datekey: not a YYYY-MM-DD date")

const layout = "2006-01-02"

// Key identifies one calendar day with no time-of-day or zone attached.
// All night arithmetic in the module goes through this type; extracting the
// day from a time.Time in the wrong zone is how off-by-one nights happen.
type Key struct {
	year  int
	month time.Month
	day   int
}

func Parse(s string) (Key, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Key{}, ErrInvalidKey
	}
	return Key{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

// MustParse is for fixtures and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// FromTime extracts the calendar day of t in t's own location.
func FromTime(t time.Time) Key {
	return Key{year: t.Year(), month: t.Month(), day: t.Day()}
}

func New(year int, month time.Month, day int) Key {
	// Normalize through time.Date so New(2024, 2, 30) carries over.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return FromTime(t)
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) String() string {
	return k.noon().Format(layout)
}

// noon anchors the key mid-day so AddDays can never slip a day across a
// DST transition.
func (k Key) noon() time.Time {
	return time.Date(k.year, k.month, k.day, 12, 0, 0, 0, time.UTC)
}

// Midnight returns the start of the day in loc, for interop with APIs that
// want a time.Time.
func (k Key) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(k.year, k.month, k.day, 0, 0, 0, 0, loc)
}

func (k Key) AddDays(n int) Key {
	return FromTime(k.noon().AddDate(0, 0, n))
}

func (k Key) AddMonths(n int) Key {
	return FromTime(k.noon().AddDate(0, n, 0))
}

func (k Key) Next() Key { return k.AddDays(1) }
func (k Key) Prev() Key { return k.AddDays(-1) }

func (k Key) Before(other Key) bool {
	return k.noon().Before(other.noon())
}

func (k Key) After(other Key) bool {
	return other.Before(k)
}

// DaysUntil returns the signed number of days from k to other.
func (k Key) DaysUntil(other Key) int {
	return int(other.noon().Sub(k.noon()).Hours() / 24)
}

// EachUntil calls fn for every day in the half-open run [k, end). It stops
// early if fn returns false.
func (k Key) EachUntil(end Key, fn func(Key) bool) {
	for cur := k; cur.Before(end); cur = cur.Next() {
		if !fn(cur) {
			return
		}
	}
}

// Today returns the current calendar day as seen by clock in loc.
func Today(clock func() time.Time, loc *time.Location) Key {
	now := clock()
	if loc != nil {
		now = now.In(loc)
	}
	return FromTime(now)
}
