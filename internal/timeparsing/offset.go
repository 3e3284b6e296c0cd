// Package timeparsing resolves the reference times users pass to --as-of:
// offsets ("-1w"), timestamps ("2025-06-01") and English phrases
// ("last friday"). See ParseRelativeTime for the order they are tried in.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var offsetRe = regexp.MustCompile(`^([+-]?)(\d{1,6})([hdwmy])$`)

// offsetUnits maps an offset suffix to a calendar step. Days and larger move
// by calendar date so wall-clock time survives DST changes.
var offsetUnits = map[string]func(t time.Time, n int) time.Time{
	"h": func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Hour) },
	"d": func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) },
	"w": func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) },
	"m": func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) },
	"y": func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) },
}

// ParseCompactDuration applies an offset like "-1w", "+36h" or "2d" to now.
// An unsigned offset moves forward.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("offset %q: %w", s, err)
	}
	if m[1] == "-" {
		n = -n
	}
	return offsetUnits[m[3]](now, n), nil
}

// IsCompactDuration reports whether s is offset syntax.
func IsCompactDuration(s string) bool {
	return offsetRe.MatchString(s)
}
