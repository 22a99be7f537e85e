package reminder

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// Kind distinguishes user-created reminders from the ones a meal plan
// derives for its ingredients.
type Kind string

const (
	KindPersonal   Kind = "personal"
	KindIngredient Kind = "ingredient"
)

// State is the computed position of a reminder in its lifecycle.
type State string

const (
	StateScheduled State = "scheduled"
	StateDue       State = "due"
	StateSent      State = "sent"
	StateUrgent    State = "urgent"
	StateExpired   State = "expired"
)

// MealDateLayout is the date-only format of Reminder.MealDate.
const MealDateLayout = "2006-01-02"

// Reminder is a scheduled notification to a set of recipients.
//
// Invariant: Urgent is true iff UrgentUntil is set; use EnterUrgent and
// ClearUrgent rather than touching the fields directly. Ingredient reminders
// are always one-shot per instance; recurrence belongs to personal reminders
// only.
type Reminder struct {
	ID           string
	Text         string
	Due          time.Time
	IntervalDays int
	Recipients   []int64
	Kind         Kind
	CreatorID    int64
	CreatedAt    time.Time

	Urgent      bool
	UrgentUntil *time.Time
	LastSent    *time.Time

	// While urgent, a recurring reminder runs one-shot; the regular cadence
	// is parked here and restored on urgent expiry.
	OriginalInterval int
	OriginalDue      *time.Time

	// Ingredient kind only.
	PlanID         string
	IngredientID   string
	RecipeName     string
	MealDate       string // date-only, MealDateLayout
	NotBoughtCount int
}

var lastID atomic.Int64

// NewID derives a reminder id from the creation instant, bumped past the
// previously issued id so two creations within the same nanosecond still get
// distinct ids. The underscore is load-bearing for the legacy correlation
// key format.
func NewID(now time.Time) string {
	n := now.UnixNano()
	for {
		prev := lastID.Load()
		if n <= prev {
			n = prev + 1
		}
		if lastID.CompareAndSwap(prev, n) {
			return fmt.Sprintf("rem_%d", n)
		}
	}
}

// State reports the reminder's lifecycle state at the given instant.
func (r *Reminder) State(now time.Time) State {
	switch {
	case r.Urgent:
		return StateUrgent
	case r.LastSent != nil:
		return StateSent
	case !r.Due.After(now):
		return StateDue
	default:
		return StateScheduled
	}
}

// IsOneShot reports whether the reminder carries no recurrence, counting a
// cadence parked by urgent mode as recurrence.
func (r *Reminder) IsOneShot() bool {
	return r.IntervalDays == 0 && r.OriginalInterval == 0
}

// EnterUrgent puts the reminder into urgent mode until the given instant,
// parking the regular cadence of a recurring reminder.
func (r *Reminder) EnterUrgent(until time.Time) {
	if r.IntervalDays > 0 {
		r.OriginalInterval = r.IntervalDays
		due := r.Due
		r.OriginalDue = &due
		r.IntervalDays = 0
	}
	r.Urgent = true
	r.UrgentUntil = &until
}

// ClearUrgent leaves urgent mode without restoring a parked cadence; callers
// that need the cadence back use the engine's urgent-expiry path.
func (r *Reminder) ClearUrgent() {
	r.Urgent = false
	r.UrgentUntil = nil
}

// MealDay parses MealDate in the given location, returning the start of that
// day. ok is false when the field is empty or unparsable.
func (r *Reminder) MealDay(loc *time.Location) (time.Time, bool) {
	if r.MealDate == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(MealDateLayout, r.MealDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// HasRecipient reports whether id is in the recipient set.
func (r *Reminder) HasRecipient(id int64) bool {
	for _, rec := range r.Recipients {
		if rec == id {
			return true
		}
	}
	return false
}

// RemoveRecipients drops the given ids from the recipient set.
func (r *Reminder) RemoveRecipients(ids []int64) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.Recipients[:0]
	for _, rec := range r.Recipients {
		if !drop[rec] {
			kept = append(kept, rec)
		}
	}
	r.Recipients = kept
}

// NormalizeRecipients sorts and deduplicates a recipient list, giving it set
// semantics regardless of input order.
func NormalizeRecipients(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
