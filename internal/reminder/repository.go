package reminder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a database-backed repository for reminders. Recipient sets
// are serialized as ordered lists and rehydrated to sets; timestamps are
// stored as RFC 3339 with explicit offset.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const reminderColumns = `id, text, due, interval_days, recipients, kind, creator_id, created_at,
	urgent, urgent_until, last_sent, not_bought_count, original_interval, original_due,
	plan_id, ingredient_id, recipe_name, meal_date`

// Save inserts or updates a reminder.
func (r *Repository) Save(ctx context.Context, rem *Reminder) error {
	recipients, err := json.Marshal(NormalizeRecipients(rem.Recipients))
	if err != nil {
		return fmt.Errorf("failed to marshal recipients for reminder %s: %w", rem.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			due = excluded.due,
			interval_days = excluded.interval_days,
			recipients = excluded.recipients,
			urgent = excluded.urgent,
			urgent_until = excluded.urgent_until,
			last_sent = excluded.last_sent,
			not_bought_count = excluded.not_bought_count,
			original_interval = excluded.original_interval,
			original_due = excluded.original_due`,
		rem.ID, rem.Text, formatTime(rem.Due), rem.IntervalDays, string(recipients),
		string(rem.Kind), rem.CreatorID, formatTime(rem.CreatedAt),
		boolToInt(rem.Urgent), formatTimePtr(rem.UrgentUntil), formatTimePtr(rem.LastSent),
		rem.NotBoughtCount, rem.OriginalInterval, formatTimePtr(rem.OriginalDue),
		rem.PlanID, rem.IngredientID, rem.RecipeName, rem.MealDate)
	if err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", rem.ID, err)
	}
	return nil
}

// Get retrieves a reminder by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Reminder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	rem, err := scanReminder(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder %s: %w", id, err)
	}
	return rem, nil
}

// List retrieves all reminders ordered by due time.
func (r *Repository) List(ctx context.Context) ([]*Reminder, error) {
	return r.query(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY due`)
}

// ListByPlan retrieves all ingredient reminders belonging to a meal plan.
func (r *Repository) ListByPlan(ctx context.Context, planID string) ([]*Reminder, error) {
	return r.query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE plan_id = ? ORDER BY due`, planID)
}

// Delete removes a reminder. Deleting an absent reminder is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	return nil
}

// DeleteByPlan removes all ingredient reminders for a meal plan, returning
// the removed ids so the caller can clean up correlations and messages.
func (r *Repository) DeleteByPlan(ctx context.Context, planID string) ([]string, error) {
	rems, err := r.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rems))
	for _, rem := range rems {
		if err := r.Delete(ctx, rem.ID); err != nil {
			return ids, err
		}
		ids = append(ids, rem.ID)
	}
	return ids, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]*Reminder, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var rems []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rems = append(rems, rem)
	}
	return rems, rows.Err()
}

func scanReminder(scan func(dest ...any) error) (*Reminder, error) {
	var rem Reminder
	var due, createdAt, kind, recipients string
	var urgent int
	var urgentUntil, lastSent, originalDue sql.NullString

	if err := scan(&rem.ID, &rem.Text, &due, &rem.IntervalDays, &recipients, &kind,
		&rem.CreatorID, &createdAt, &urgent, &urgentUntil, &lastSent,
		&rem.NotBoughtCount, &rem.OriginalInterval, &originalDue,
		&rem.PlanID, &rem.IngredientID, &rem.RecipeName, &rem.MealDate); err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal([]byte(recipients), &ids); err != nil {
		return nil, fmt.Errorf("corrupt recipient list: %w", err)
	}
	rem.Recipients = NormalizeRecipients(ids)
	rem.Kind = Kind(kind)
	rem.Urgent = urgent != 0

	var err error
	if rem.Due, err = parseTime(due); err != nil {
		return nil, fmt.Errorf("corrupt due timestamp: %w", err)
	}
	if rem.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created timestamp: %w", err)
	}
	if rem.UrgentUntil, err = parseTimePtr(urgentUntil); err != nil {
		return nil, fmt.Errorf("corrupt urgent_until timestamp: %w", err)
	}
	if rem.LastSent, err = parseTimePtr(lastSent); err != nil {
		return nil, fmt.Errorf("corrupt last_sent timestamp: %w", err)
	}
	if rem.OriginalDue, err = parseTimePtr(originalDue); err != nil {
		return nil, fmt.Errorf("corrupt original_due timestamp: %w", err)
	}
	return &rem, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
