package util

import "time"

// NowUTC is the run clock. Services hold it as a field so tests can pin it.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Elapsed returns end-start rounded to milliseconds, or zero when either
// timestamp is unset or end precedes start.
func Elapsed(start, end time.Time) time.Duration {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start).Round(time.Millisecond)
}
