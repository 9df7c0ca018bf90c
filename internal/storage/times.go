package storage

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are the text layouts backends hand back for timestamp
// columns. SQLite stores RFC3339Nano (what the engine writes); the rest
// cover values written by other tools against the same tables.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// ParseTime normalizes a timestamp scanned into an untyped destination.
// Drivers with native timestamp types return time.Time; SQLite returns
// the stored TEXT. The second return is false for SQL NULL.
func ParseTime(v any) (time.Time, bool, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x, true, nil
	case string:
		return parseTimeString(x)
	case []byte:
		return parseTimeString(string(x))
	default:
		return time.Time{}, false, fmt.Errorf("cannot interpret %T as timestamp", v)
	}
}

func parseTimeString(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}
