package domain

import (
	"strings"
	"time"
)

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExpiry parses a caller supplied expiry. Layouts without a zone are read as UTC.
// The result is truncated to microseconds, the precision every store keeps.
// Blank input returns nil, nil.
func ParseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.Truncate(time.Microsecond)
			return &t, nil
		}
	}
	return nil, ErrInvalidDate
}
