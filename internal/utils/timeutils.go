package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// UnixSeconds floors a millisecond wire timestamp to whole seconds, the
// time base used for IG event matching.
func UnixSeconds(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

// WindowSeconds converts a pair of timestamps into the analysed window
// length in seconds.
func WindowSeconds(start, end time.Time) int64 {
	if end.Before(start) {
		start, end = end, start
	}
	return int64(end.Sub(start).Seconds())
}
