package reminder

import "time"

const (
	// SendWindow is how far past its due time a reminder is still sent
	// unconditionally.
	SendWindow = 30 * time.Minute
	// UrgentRefireInterval is the minimum gap between urgent re-deliveries.
	UrgentRefireInterval = 3 * time.Hour
	// UrgentDefaultDuration is how long a personal reminder stays urgent.
	UrgentDefaultDuration = 24 * time.Hour
	// OneShotRetention is how long a one-shot reminder survives after its
	// last delivery before the cleanup sweep removes it.
	OneShotRetention = 24 * time.Hour
	// CatchUpLookback bounds how far back the startup sweep reaches for
	// never-sent reminders.
	CatchUpLookback = 24 * time.Hour
)

// SendPolicy decides whether a non-urgent reminder is eligible for delivery.
type SendPolicy struct {
	Location *time.Location
	// OverdueSameDay delivers reminders that are past the SendWindow as
	// long as their due date is still today. This mirrors the historical
	// behavior; disable to let them wait for the next occurrence.
	OverdueSameDay bool
}

// Eligible reports whether the reminder should be sent at the given instant.
// A reminder is sent at most once per calendar day. A never-sent reminder
// stays eligible for a full lookback window past its due time, so a delivery
// suppressed by quiet hours is skipped, not lost, even across midnight.
func (p SendPolicy) Eligible(r *Reminder, now time.Time) bool {
	loc := p.loc()
	local := now.In(loc)
	due := r.Due.In(loc)

	if local.Before(due) {
		return false
	}
	if r.LastSent != nil && sameDay(r.LastSent.In(loc), local) {
		return false
	}
	if local.Sub(due) <= SendWindow {
		return true
	}
	if r.LastSent == nil && local.Sub(due) <= CatchUpLookback {
		return true
	}
	return p.OverdueSameDay && sameDay(due, local)
}

func (p SendPolicy) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// nextOccurrence walks anchor forward in interval-day steps to the first
// instant after now. AddDate keeps the wall-clock time stable across DST.
func nextOccurrence(anchor time.Time, intervalDays int, now time.Time) time.Time {
	if intervalDays <= 0 {
		return anchor
	}
	next := anchor
	for !next.After(now) {
		next = next.AddDate(0, 0, intervalDays)
	}
	return next
}
