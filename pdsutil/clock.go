package pdsutil

import (
	"time"
)

// TimestampLayout always renders exactly three fractional-second digits.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. Safe for concurrent use.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Intended for tests.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// FormatTimestamp renders t in UTC using TimestampLayout. Sub-millisecond precision is
// truncated, not rounded.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Now returns the clock's current instant as a timestamp string.
func Now(c Clock) string {
	return FormatTimestamp(c.Now())
}
