// Package dates normalizes timestamps to calendar-day granularity. A day
// key is midnight UTC; two timestamps belong to the same log day iff their
// day keys are equal.
package dates

import "time"

// DayKey truncates t to midnight UTC.
func DayKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBefore returns the day key n days before day.
func DaysBefore(day time.Time, n int) time.Time {
	return DayKey(day.AddDate(0, 0, -n))
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayKey(a).Equal(DayKey(b))
}

// Format renders a day key as YYYY-MM-DD, the form stored in the database.
func Format(day time.Time) string {
	return DayKey(day).Format(time.DateOnly)
}

// Parse reads a YYYY-MM-DD day key.
func Parse(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
