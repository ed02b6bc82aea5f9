package core

import (
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NowFunc returns the current time in UTC, truncated to the microsecond (the database precision).
var NowFunc = func() time.Time { // mockable
	return time.Now().UTC().Truncate(time.Microsecond)
}
