package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is a database-backed repository for users.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Ensure creates the user on first interaction, or refreshes the display
// name of an existing one.
func (r *Repository) Ensure(ctx context.Context, id int64, displayName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		id, displayName, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", id, err)
	}
	return nil
}

// Get retrieves a user by id. Returns nil when the user is unknown.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = ?`, id)

	var u User
	var createdAt string
	if err := row.Scan(&u.ID, &u.DisplayName, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// List retrieves all known users.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.DisplayName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}
