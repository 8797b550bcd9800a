package meter

import (
	"strings"
	"time"
)

// DateLayout is the calendar date wire format.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date into UTC midnight.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, invalid("date", "required")
	}
	if len(value) > len(DateLayout) {
		// accept full ISO timestamps from older exports
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return Day(ts), nil
		}
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, invalid("date", "expected YYYY-MM-DD")
	}
	return parsed, nil
}

// Day truncates t to its calendar day, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
