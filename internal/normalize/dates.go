package normalize

import (
	"strings"
	"time"
)

// dateLayouts are the upstream date shapes accepted for watermarking,
// tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
}

// ParseDate parses a raw date value leniently. The time component is
// discarded; watermarks operate on whole days.
func ParseDate(value any) (time.Time, bool) {
	s, ok := String(value)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		// Truncate to the layout's width so date-time values still
		// match plain date layouts.
		if t, err := time.Parse(layout, s[:min(len(s), len(layout))]); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

// EpochISO converts a raw timestamp to the index's paired date
// conventions: Unix seconds for *_epoch fields and RFC 3339 UTC for
// *_iso fields.
func EpochISO(value any) (epoch int64, iso string, ok bool) {
	s, strOK := String(value)
	if !strOK {
		return 0, "", false
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), "Z", "+00:00")
	for _, layout := range []string{"2006-01-02T15:04:05.999999999-07:00", "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return t.Unix(), t.Format(time.RFC3339), true
		}
	}
	return 0, "", false
}
