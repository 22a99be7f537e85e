package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"household-bot/internal/dispatch"
)

// ErrNotFound is returned for operations on reminders that no longer exist.
var ErrNotFound = errors.New("reminder not found")

// ErrNotOwner is returned when someone other than the creator deletes a
// reminder.
var ErrNotOwner = errors.New("reminder belongs to someone else")

// ErrNotRecipient is returned when someone outside the recipient set tries
// to resolve a reminder.
var ErrNotRecipient = errors.New("reminder is not addressed to this user")

// Notifier is the slice of the dispatcher the engine needs.
type Notifier interface {
	Send(ctx context.Context, n dispatch.Notification) (dispatch.Result, error)
	Retract(ctx context.Context, reminderID string, recipients []int64) error
}

// Rotator replaces a completed meal plan with next week's. Implemented by
// mealplan.Manager; a missing plan is a successful no-op.
type Rotator interface {
	Rotate(ctx context.Context, planID string) error
}

// Engine owns the reminder lifecycle. Every sweep funnels through Step, the
// single transition function; front-end operations re-read the reminder they
// mutate immediately before the read-modify-write.
type Engine struct {
	reminders *Repository
	notifier  Notifier
	rotator   Rotator
	policy    SendPolicy
	now       func() time.Time
}

// NewEngine creates an Engine. rotator may be nil (personal reminders only).
func NewEngine(reminders *Repository, notifier Notifier, rotator Rotator, policy SendPolicy) *Engine {
	return &Engine{
		reminders: reminders,
		notifier:  notifier,
		rotator:   rotator,
		policy:    policy,
		now:       time.Now,
	}
}

// SetNow overrides the engine's clock. Intended for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// SetRotator wires the rotation manager in after construction.
func (e *Engine) SetRotator(r Rotator) {
	e.rotator = r
}

// SetNotifier wires the dispatcher in after construction; the delivery
// channel is only available once the bot has authorized.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// CreateRequest is an already-validated personal reminder from the front
// end.
type CreateRequest struct {
	Text         string
	Due          time.Time
	IntervalDays int
	Recipients   []int64
	CreatorID    int64
}

// Create stores a new personal reminder and returns it.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Reminder, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("reminder text must not be empty")
	}
	recipients := NormalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("reminder needs at least one recipient")
	}

	now := e.now()
	rem := &Reminder{
		ID:           NewID(now),
		Text:         req.Text,
		Due:          req.Due,
		IntervalDays: req.IntervalDays,
		Recipients:   recipients,
		Kind:         KindPersonal,
		CreatorID:    req.CreatorID,
		CreatedAt:    now,
	}
	if err := e.reminders.Save(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

// Delete removes a reminder on behalf of its creator, retracting any
// delivered messages.
func (e *Engine) Delete(ctx context.Context, id string, callerID int64) error {
	rem, err := e.reminders.Get(ctx, id)
	if err != nil {
		return err
	}
	if rem == nil {
		return ErrNotFound
	}
	if rem.CreatorID != callerID {
		return ErrNotOwner
	}
	return e.remove(ctx, rem)
}

// MarkDone handles an explicit "done" / "bought" from a recipient.
func (e *Engine) MarkDone(ctx context.Context, id string, recipientID int64) error {
	rem, err := e.reminders.Get(ctx, id)
	if err != nil {
		return err
	}
	if rem == nil {
		return ErrNotFound
	}
	if !rem.HasRecipient(recipientID) {
		return ErrNotRecipient
	}

	now := e.now()
	switch {
	case rem.Kind == KindIngredient:
		if err := e.remove(ctx, rem); err != nil {
			return err
		}
		return e.rotate(ctx, rem)
	case !rem.IsOneShot():
		e.rescheduleAfterDone(rem, now)
		if err := e.notifier.Retract(ctx, rem.ID, rem.Recipients); err != nil {
			log.Printf("Failed to retract messages for reminder %s: %v", rem.ID, err)
		}
		return e.reminders.Save(ctx, rem)
	default:
		return e.remove(ctx, rem)
	}
}

// rescheduleAfterDone advances a recurring reminder to now + interval,
// keeping the time-of-day of the original due timestamp, and clears any
// urgent state.
func (e *Engine) rescheduleAfterDone(rem *Reminder, now time.Time) {
	interval := rem.IntervalDays
	base := rem.Due
	if rem.OriginalInterval > 0 {
		interval = rem.OriginalInterval
		if rem.OriginalDue != nil {
			base = *rem.OriginalDue
		}
	}

	loc := e.policy.loc()
	day := now.In(loc).AddDate(0, 0, interval)
	base = base.In(loc)
	rem.Due = time.Date(day.Year(), day.Month(), day.Day(), base.Hour(), base.Minute(), 0, 0, loc)
	rem.IntervalDays = interval
	rem.OriginalInterval = 0
	rem.OriginalDue = nil
	rem.LastSent = nil
	rem.ClearUrgent()
}

// MarkNotDone handles an explicit "not yet" / "not bought", entering urgent
// mode and re-delivering immediately with message replacement.
func (e *Engine) MarkNotDone(ctx context.Context, id string, recipientID int64) error {
	rem, err := e.reminders.Get(ctx, id)
	if err != nil {
		return err
	}
	if rem == nil {
		return ErrNotFound
	}
	if !rem.HasRecipient(recipientID) {
		return ErrNotRecipient
	}

	now := e.now()
	until := now.Add(UrgentDefaultDuration)
	if rem.Kind == KindIngredient {
		rem.NotBoughtCount++
		if day, ok := rem.MealDay(e.policy.loc()); ok {
			until = day
		}
	}
	rem.EnterUrgent(until)

	if err := e.reminders.Save(ctx, rem); err != nil {
		return err
	}
	return e.send(ctx, rem, now, sendOpts{urgent: true, replace: true})
}

// EvaluateAll runs the state machine over every reminder. Per-reminder
// failures are logged and do not abort the sweep.
func (e *Engine) EvaluateAll(ctx context.Context) {
	rems, err := e.reminders.List(ctx)
	if err != nil {
		log.Printf("Sweep: failed to list reminders: %v", err)
		return
	}
	now := e.now()
	for _, rem := range rems {
		if err := e.Step(ctx, rem, now); err != nil {
			log.Printf("Sweep: reminder %s: %v", rem.ID, err)
		}
	}
}

// Step applies at most one state transition to the reminder at the given
// instant. It is the only place transitions happen; all three sweep jobs and
// the catch-up pass call it or one of its helpers.
func (e *Engine) Step(ctx context.Context, rem *Reminder, now time.Time) error {
	loc := e.policy.loc()
	local := now.In(loc)

	// Ingredient reminders expire by meal-date passage, whatever their
	// send or urgent state. The expiry triggers plan rotation.
	if rem.Kind == KindIngredient {
		if day, ok := rem.MealDay(loc); ok && day.Before(startOfDay(local)) {
			if err := e.remove(ctx, rem); err != nil {
				return err
			}
			return e.rotate(ctx, rem)
		}
	}

	// One-shot reminders leave the store 24h after their last delivery,
	// urgent or not. Bounds unattended growth.
	if rem.Kind == KindPersonal && rem.IsOneShot() &&
		rem.LastSent != nil && now.Sub(*rem.LastSent) >= OneShotRetention {
		return e.remove(ctx, rem)
	}

	if rem.Urgent {
		return e.stepUrgent(ctx, rem, now, local)
	}

	if e.policy.Eligible(rem, now) {
		return e.send(ctx, rem, now, sendOpts{})
	}
	return nil
}

func (e *Engine) stepUrgent(ctx context.Context, rem *Reminder, now, local time.Time) error {
	if rem.UrgentUntil != nil && !now.Before(*rem.UrgentUntil) {
		return e.expireUrgent(ctx, rem, now)
	}
	if rem.LastSent != nil && now.Sub(*rem.LastSent) < UrgentRefireInterval {
		return nil
	}
	if dispatch.InQuietHours(local) {
		// Deferred, not skipped: the first sweep after 09:00 re-fires.
		log.Printf("Urgent re-fire for reminder %s deferred to %s", rem.ID,
			dispatch.NextAllowed(local).Format(time.RFC3339))
		return nil
	}
	return e.send(ctx, rem, now, sendOpts{urgent: true, replace: true})
}

// expireUrgent leaves urgent mode once urgent_until has passed. One-shot
// personal reminders are removed outright; recurring ones restore their
// parked cadence from the preserved anchor; ingredient reminders only clear
// the flags, since their removal is governed by meal-date passage.
func (e *Engine) expireUrgent(ctx context.Context, rem *Reminder, now time.Time) error {
	switch {
	case rem.Kind == KindIngredient:
		rem.ClearUrgent()
	case rem.IsOneShot():
		return e.remove(ctx, rem)
	default:
		interval := rem.OriginalInterval
		if interval == 0 {
			interval = rem.IntervalDays
		}
		anchor := rem.Due
		if rem.OriginalDue != nil {
			anchor = *rem.OriginalDue
		}
		rem.Due = nextOccurrence(anchor, interval, now)
		rem.IntervalDays = interval
		rem.OriginalInterval = 0
		rem.OriginalDue = nil
		rem.LastSent = nil
		rem.ClearUrgent()
	}
	return e.reminders.Save(ctx, rem)
}

// CatchUp is the startup pass: reminders due within the lookback window that
// were never sent go out flagged "missed" (quiet hours do not apply), and
// recurring reminders left behind by downtime advance to their next future
// occurrence.
func (e *Engine) CatchUp(ctx context.Context) {
	rems, err := e.reminders.List(ctx)
	if err != nil {
		log.Printf("Catch-up: failed to list reminders: %v", err)
		return
	}
	now := e.now()
	for _, rem := range rems {
		if err := e.catchUpOne(ctx, rem, now); err != nil {
			log.Printf("Catch-up: reminder %s: %v", rem.ID, err)
		}
	}
}

func (e *Engine) catchUpOne(ctx context.Context, rem *Reminder, now time.Time) error {
	if rem.LastSent == nil && !rem.Urgent &&
		rem.Due.Before(now) && now.Sub(rem.Due) <= CatchUpLookback {
		return e.send(ctx, rem, now, sendOpts{missed: true})
	}

	// Recurring reminder whose due fell more than a full day behind:
	// advance past all elapsed intervals instead of replaying them.
	if rem.IntervalDays > 0 && now.Sub(rem.Due) > CatchUpLookback {
		rem.Due = nextOccurrence(rem.Due, rem.IntervalDays, now)
		return e.reminders.Save(ctx, rem)
	}
	return nil
}

// ExpireStale is the hourly cleanup: ingredient reminders past their meal
// date (which triggers rotation) and one-shot reminders past retention.
// Returns the number of reminders removed.
func (e *Engine) ExpireStale(ctx context.Context) int {
	rems, err := e.reminders.List(ctx)
	if err != nil {
		log.Printf("Cleanup: failed to list reminders: %v", err)
		return 0
	}

	now := e.now()
	loc := e.policy.loc()
	today := startOfDay(now.In(loc))
	removed := 0
	for _, rem := range rems {
		stale := false
		switch {
		case rem.Kind == KindIngredient:
			if day, ok := rem.MealDay(loc); ok && day.Before(today) {
				stale = true
			}
		case rem.IsOneShot() && rem.LastSent != nil:
			stale = now.Sub(*rem.LastSent) >= OneShotRetention
		}
		if !stale {
			continue
		}
		if err := e.remove(ctx, rem); err != nil {
			log.Printf("Cleanup: reminder %s: %v", rem.ID, err)
			continue
		}
		removed++
		if rem.Kind == KindIngredient {
			if err := e.rotate(ctx, rem); err != nil {
				log.Printf("Cleanup: rotation for plan %s: %v", rem.PlanID, err)
			}
		}
	}
	return removed
}

type sendOpts struct {
	urgent  bool
	replace bool
	missed  bool
}

func (e *Engine) send(ctx context.Context, rem *Reminder, now time.Time, opts sendOpts) error {
	res, err := e.notifier.Send(ctx, dispatch.Notification{
		ReminderID: rem.ID,
		Text:       rem.Text,
		Ingredient: rem.Kind == KindIngredient,
		Recipients: rem.Recipients,
		Urgent:     opts.urgent,
		Replace:    opts.replace,
		Missed:     opts.missed,
	})
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}

	changed := false
	if len(res.Dropped) > 0 {
		rem.RemoveRecipients(res.Dropped)
		changed = true
		if len(rem.Recipients) == 0 {
			log.Printf("Reminder %s has no reachable recipients left", rem.ID)
		}
	}
	if len(res.Delivered) > 0 {
		sent := now
		rem.LastSent = &sent
		changed = true

		// Sent -> Recurring: a recurring reminder rolls its due time
		// forward as soon as the delivery lands, so tomorrow's sweep sees
		// a future schedule again. The sent-today guard in SendPolicy
		// covers the window before this write is visible.
		if !opts.urgent && rem.IntervalDays > 0 {
			rem.Due = nextOccurrence(rem.Due, rem.IntervalDays, now)
		}
	}
	if !changed {
		return nil
	}
	return e.reminders.Save(ctx, rem)
}

func (e *Engine) remove(ctx context.Context, rem *Reminder) error {
	if err := e.notifier.Retract(ctx, rem.ID, rem.Recipients); err != nil {
		log.Printf("Failed to retract messages for reminder %s: %v", rem.ID, err)
	}
	return e.reminders.Delete(ctx, rem.ID)
}

func (e *Engine) rotate(ctx context.Context, rem *Reminder) error {
	if e.rotator == nil || rem.PlanID == "" {
		return nil
	}
	return e.rotator.Rotate(ctx, rem.PlanID)
}
