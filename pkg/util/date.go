package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate accepts YYYY-MM-DD, RFC3339 or unix seconds. Dates without a
// time are midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// DaysSince counts whole calendar days from t to now, at least 1.
func DaysSince(t, now time.Time) int {
	d := int(now.Sub(t).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}
