package dispatch

import "time"

// Quiet hours: nobody wants a grocery ping at 2am. Local-time window
// [23:00, 09:00).
const (
	quietStartHour = 23
	quietEndHour   = 9
)

// InQuietHours reports whether t falls inside the quiet-hours window.
func InQuietHours(t time.Time) bool {
	h := t.Hour()
	return h >= quietStartHour || h < quietEndHour
}

// NextAllowed returns the earliest instant at or after t that is outside
// quiet hours: t itself, or 09:00 of the same or next day.
func NextAllowed(t time.Time) time.Time {
	if !InQuietHours(t) {
		return t
	}
	day := t
	if t.Hour() >= quietStartHour {
		day = t.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), quietEndHour, 0, 0, 0, t.Location())
}
