// Package timefmt collects the date/time layouts used in logs and API payloads.
package timefmt

import "time"

const (
	Date            = "2006-01-02"
	DateCompact     = "20060102"
	DateMinute      = "2006-01-02 15:04"
	DateTime        = "2006-01-02 15:04:05"
	DateTimeCompact = "20060102150405"
	ShortTime       = "15:04"
)

// Format renders t with layout in t's own location.
func Format(t time.Time, layout string) string {
	return t.Format(layout)
}

// ParseDateTime parses s with layout in the local time zone.
func ParseDateTime(s, layout string) (time.Time, error) {
	return time.ParseInLocation(layout, s, time.Local)
}

// ParseDate parses s as a Date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(Date, s, time.Local)
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
