package pipeline

import (
	"fmt"
	"time"
)

// WallClock returns the wall clock of t as a UTC time. Chat timestamps are
// stored this way, so every time compared with them goes through here.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ParseWhen accepts RFC 3339 or a bare date. The offset of an RFC 3339 value
// is dropped and its wall clock kept. A bare date used as an upper bound
// covers the whole day.
func ParseWhen(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return WallClock(t), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// Window resolves since and until bounds. An empty since is unbounded and
// an empty until is now.
func Window(since, until string, now time.Time) (start, end time.Time, err error) {
	end = WallClock(now)
	if since != "" {
		if start, err = ParseWhen(since, false); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid since %q: %w", since, err)
		}
	}
	if until != "" {
		if end, err = ParseWhen(until, true); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid until %q: %w", until, err)
		}
	}
	return start, end, nil
}
