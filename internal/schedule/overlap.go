// Package schedule decides whether two half-open booking windows collide.
package schedule

import (
	"time"

	"github.com/evecs/backend/internal/apperr"
)

// Accepted timestamp layouts, tried in order. Everything is normalized to UTC
// before comparison.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO 8601 timestamp and normalizes it to UTC.
// Inputs that cannot be normalized are rejected as MalformedTimestamp.
func ParseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperr.New(apperr.KindMissingField, field, "missing mandatory field: "+field)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Newf(apperr.KindMalformedTimestamp, field,
		"invalid date format %q, use ISO 8601 (e.g. 2006-01-02T15:04:05Z)", value)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back windows (aEnd == bStart) do not
// conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
