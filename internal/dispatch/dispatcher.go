package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"household-bot/internal/correlation"
)

// Button is an inline action attached to a delivered message.
type Button struct {
	Label string
	Data  string
}

// Messenger is the chat-delivery collaborator. Implementations map their
// platform errors onto *DeliveryError and ErrNotFound.
type Messenger interface {
	SendMessage(ctx context.Context, recipientID int64, text string, buttons []Button) (int, error)
	DeleteMessage(ctx context.Context, recipientID int64, messageID int) error
	EditMessage(ctx context.Context, recipientID int64, messageID int, text string, buttons []Button) error
}

// Recorder receives per-recipient delivery outcomes. Optional.
type Recorder interface {
	RecordDelivery(reminderID string, recipientID int64, outcome string)
}

// Notification is a reminder rendered down to what the dispatcher needs.
// The engine builds one per send; the dispatcher owns message text, buttons
// and correlation bookkeeping.
type Notification struct {
	ReminderID string
	Text       string
	Ingredient bool
	Recipients []int64

	// Urgent sends bypass quiet-hour suppression and prefer editing the
	// previously delivered message over sending a duplicate.
	Urgent  bool
	Replace bool
	// Missed marks a startup catch-up delivery; it is flagged in the text
	// and is the only non-urgent send allowed during quiet hours.
	Missed bool
}

// Result reports what happened per recipient.
type Result struct {
	Delivered []int64
	Dropped   []int64
	Failed    []int64
	// Skipped is set when the whole send was suppressed by quiet hours.
	Skipped bool
}

// Dispatcher sends reminder notifications and keeps the message-correlation
// table in step with what is actually on the recipients' screens.
type Dispatcher struct {
	messenger    Messenger
	correlations *correlation.Repository
	recorder     Recorder
	loc          *time.Location
	now          func() time.Time
}

// NewDispatcher creates a Dispatcher. recorder may be nil.
func NewDispatcher(m Messenger, c *correlation.Repository, recorder Recorder, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{
		messenger:    m,
		correlations: c,
		recorder:     recorder,
		loc:          loc,
		now:          time.Now,
	}
}

// SetNow overrides the dispatcher's clock. Intended for tests.
func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// Send delivers the notification to every recipient. Per-recipient failures
// never abort the loop; they are classified, logged and reflected in the
// Result. Non-urgent, non-missed sends are suppressed during quiet hours.
func (d *Dispatcher) Send(ctx context.Context, n Notification) (Result, error) {
	var res Result

	local := d.now().In(d.loc)
	if InQuietHours(local) && !n.Urgent && !n.Missed {
		res.Skipped = true
		return res, nil
	}

	text := renderText(n)
	buttons := renderButtons(n)

	for _, recipientID := range n.Recipients {
		delivered, err := d.sendOne(ctx, n, recipientID, text, buttons)
		switch {
		case err == nil && delivered:
			res.Delivered = append(res.Delivered, recipientID)
			d.record(n.ReminderID, recipientID, "sent")
		case err == nil:
			// replaced in place, message handle unchanged
			res.Delivered = append(res.Delivered, recipientID)
			d.record(n.ReminderID, recipientID, "replaced")
		case KindOf(err) == ChatNotFound:
			log.Printf("Recipient %d unreachable for reminder %s, dropping: %v", recipientID, n.ReminderID, err)
			if derr := d.correlations.Delete(ctx, n.ReminderID, recipientID); derr != nil {
				log.Printf("Failed to drop correlation for reminder %s recipient %d: %v", n.ReminderID, recipientID, derr)
			}
			res.Dropped = append(res.Dropped, recipientID)
			d.record(n.ReminderID, recipientID, "dropped")
		default:
			log.Printf("Delivery to %d failed for reminder %s (%s): %v", recipientID, n.ReminderID, KindOf(err), err)
			res.Failed = append(res.Failed, recipientID)
			d.record(n.ReminderID, recipientID, "failed")
		}
	}

	return res, nil
}

// sendOne delivers to a single recipient. When replacement is requested and a
// prior message is known, it is edited in place; a stale handle falls back to
// a fresh send. Returns delivered=true when a new message was sent.
func (d *Dispatcher) sendOne(ctx context.Context, n Notification, recipientID int64, text string, buttons []Button) (bool, error) {
	if n.Replace {
		entry, err := d.correlations.Get(ctx, n.ReminderID, recipientID)
		if err != nil {
			return false, fmt.Errorf("correlation lookup: %w", err)
		}
		if entry != nil {
			err := d.messenger.EditMessage(ctx, recipientID, entry.MessageID, text, buttons)
			if err == nil {
				return false, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return false, err
			}
			// stale handle: already resolved on the platform side
			if derr := d.correlations.Delete(ctx, n.ReminderID, recipientID); derr != nil {
				log.Printf("Failed to drop stale correlation for reminder %s recipient %d: %v", n.ReminderID, recipientID, derr)
			}
		}
	}

	messageID, err := d.messenger.SendMessage(ctx, recipientID, text, buttons)
	if err != nil {
		return false, err
	}

	if err := d.correlations.Put(ctx, correlation.Entry{
		ReminderID:  n.ReminderID,
		RecipientID: recipientID,
		MessageID:   messageID,
	}); err != nil {
		log.Printf("Failed to record correlation for reminder %s recipient %d: %v", n.ReminderID, recipientID, err)
	}
	return true, nil
}

// Retract deletes any delivered messages for the reminder and drops their
// correlation entries. A message that is already gone counts as retracted;
// per-recipient failures are logged and never abort the rest.
func (d *Dispatcher) Retract(ctx context.Context, reminderID string, recipients []int64) error {
	for _, recipientID := range recipients {
		entry, err := d.correlations.Get(ctx, reminderID, recipientID)
		if err != nil {
			log.Printf("Failed to look up correlation for reminder %s recipient %d: %v", reminderID, recipientID, err)
			continue
		}
		if entry == nil {
			continue
		}
		if err := d.messenger.DeleteMessage(ctx, recipientID, entry.MessageID); err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("Failed to retract message for reminder %s recipient %d: %v", reminderID, recipientID, err)
		}
		if err := d.correlations.Delete(ctx, reminderID, recipientID); err != nil {
			log.Printf("Failed to drop correlation for reminder %s recipient %d: %v", reminderID, recipientID, err)
		}
	}
	return nil
}

func (d *Dispatcher) record(reminderID string, recipientID int64, outcome string) {
	if d.recorder == nil {
		return
	}
	d.recorder.RecordDelivery(reminderID, recipientID, outcome)
}
