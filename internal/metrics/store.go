package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Store persists per-recipient delivery outcomes to SQLite. It satisfies
// dispatch.Recorder.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordDelivery saves one delivery outcome. Metrics are best-effort; a
// failed write is logged, never surfaced.
func (s *Store) RecordDelivery(reminderID string, recipientID int64, outcome string) {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO delivery_metrics (reminder_id, recipient_id, outcome, timestamp)
		VALUES (?, ?, ?, ?)`,
		reminderID, recipientID, outcome, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Printf("Failed to record delivery metric for reminder %s: %v", reminderID, err)
	}
}

// DailyActivity represents delivery totals for a single day.
type DailyActivity struct {
	Date      string
	Delivered int
	Failed    int
	Dropped   int
}

// GetDailyActivity retrieves delivery totals for the last N days.
func (s *Store) GetDailyActivity(days int) ([]DailyActivity, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT substr(timestamp, 1, 10) AS day,
			SUM(CASE WHEN outcome IN ('sent', 'replaced') THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'dropped' THEN 1 ELSE 0 END)
		FROM delivery_metrics WHERE timestamp >= ?
		GROUP BY day ORDER BY day DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyActivity
	for rows.Next() {
		var d DailyActivity
		if err := rows.Scan(&d.Date, &d.Delivered, &d.Failed, &d.Dropped); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were removed.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM delivery_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
