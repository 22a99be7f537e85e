package correlation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Entry links a (reminder, recipient) pair to the message last delivered for
// it, so an escalation can replace the stale notification instead of piling
// up duplicates.
type Entry struct {
	ReminderID  string
	RecipientID int64
	MessageID   int
}

// Key returns the entry's composite key.
func (e Entry) Key() Key {
	return Key{ReminderID: e.ReminderID, RecipientID: e.RecipientID}
}

// Repository is a database-backed repository for message correlations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Put records the delivered message for a (reminder, recipient) pair,
// replacing any previous handle.
func (r *Repository) Put(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_correlations (reminder_id, recipient_id, message_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(reminder_id, recipient_id) DO UPDATE SET
			message_id = excluded.message_id, created_at = excluded.created_at`,
		e.ReminderID, e.RecipientID, e.MessageID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store correlation %s: %w", e.Key(), err)
	}
	return nil
}

// Get retrieves the entry for a (reminder, recipient) pair, or nil.
func (r *Repository) Get(ctx context.Context, reminderID string, recipientID int64) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT reminder_id, recipient_id, message_id FROM message_correlations
		WHERE reminder_id = ? AND recipient_id = ?`, reminderID, recipientID)

	var e Entry
	if err := row.Scan(&e.ReminderID, &e.RecipientID, &e.MessageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get correlation: %w", err)
	}
	return &e, nil
}

// Delete removes the entry for a (reminder, recipient) pair. Deleting an
// absent entry is not an error.
func (r *Repository) Delete(ctx context.Context, reminderID string, recipientID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM message_correlations WHERE reminder_id = ? AND recipient_id = ?`,
		reminderID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to delete correlation: %w", err)
	}
	return nil
}

// DeleteForReminder removes all entries belonging to a reminder.
func (r *Repository) DeleteForReminder(ctx context.Context, reminderID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM message_correlations WHERE reminder_id = ?`, reminderID)
	if err != nil {
		return fmt.Errorf("failed to delete correlations for reminder %s: %w", reminderID, err)
	}
	return nil
}

// List retrieves all entries.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reminder_id, recipient_id, message_id FROM message_correlations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ReminderID, &e.RecipientID, &e.MessageID); err != nil {
			return nil, fmt.Errorf("failed to scan correlation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOrphans removes entries whose reminder no longer exists and returns
// the number removed.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM message_correlations
		WHERE reminder_id NOT IN (SELECT id FROM reminders)`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned correlations: %w", err)
	}
	return res.RowsAffected()
}

// PurgeMalformed removes entries with a non-positive recipient id (the
// residue of the legacy string-keyed format, see ParseKey) and returns the
// number removed. Safe to run repeatedly.
func (r *Repository) PurgeMalformed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM message_correlations WHERE recipient_id <= 0 OR reminder_id = ''`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge malformed correlations: %w", err)
	}
	return res.RowsAffected()
}

// ImportLegacy loads entries from the legacy flat map of composite key to
// message id. Malformed keys are skipped and counted. Used by the
// purge-correlations maintenance command when migrating an old data file.
func (r *Repository) ImportLegacy(ctx context.Context, legacy map[string]int) (imported, skipped int, err error) {
	for raw, messageID := range legacy {
		key, perr := ParseKey(raw)
		if perr != nil {
			skipped++
			continue
		}
		if err := r.Put(ctx, Entry{ReminderID: key.ReminderID, RecipientID: key.RecipientID, MessageID: messageID}); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}
