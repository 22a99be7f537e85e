package correlation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"household-bot/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedReminder(t *testing.T, db *database.DB, id string) {
	t.Helper()
	_, err := db.SQL.Exec(`
		INSERT INTO reminders (id, text, due, interval_days, recipients, kind,
			urgent, not_bought_count, creator_id, created_at)
		VALUES (?, 'x', ?, 0, '[1]', 'personal', 0, 0, 1, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to seed reminder: %v", err)
	}
}

func TestPutGetDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db.SQL)
	ctx := context.Background()

	e := Entry{ReminderID: "rem_1", RecipientID: 10, MessageID: 555}
	if err := repo.Put(ctx, e); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	// a second put replaces the handle
	e.MessageID = 556
	if err := repo.Put(ctx, e); err != nil {
		t.Fatalf("Failed to replace: %v", err)
	}

	got, err := repo.Get(ctx, "rem_1", 10)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got == nil || got.MessageID != 556 {
		t.Fatalf("Expected replaced message id 556, got %+v", got)
	}

	if err := repo.Delete(ctx, "rem_1", 10); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if got, _ := repo.Get(ctx, "rem_1", 10); got != nil {
		t.Error("Expected entry to be gone after delete")
	}
	if err := repo.Delete(ctx, "rem_1", 10); err != nil {
		t.Errorf("Expected deleting an absent entry to succeed, got %v", err)
	}
}

func TestDeleteOrphans(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db.SQL)
	ctx := context.Background()

	seedReminder(t, db, "rem_live")
	for _, e := range []Entry{
		{ReminderID: "rem_live", RecipientID: 1, MessageID: 1},
		{ReminderID: "rem_gone", RecipientID: 1, MessageID: 2},
		{ReminderID: "rem_gone", RecipientID: 2, MessageID: 3},
	} {
		if err := repo.Put(ctx, e); err != nil {
			t.Fatalf("Failed to put: %v", err)
		}
	}

	n, err := repo.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("Failed to delete orphans: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 orphans removed, got %d", n)
	}

	// second run removes nothing
	n, err = repo.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("Failed on second orphan pass: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected repeat run to remove nothing, got %d", n)
	}

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 1 || entries[0].ReminderID != "rem_live" {
		t.Errorf("Expected only the live entry to survive, got %+v", entries)
	}
}

func TestPurgeMalformed(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db.SQL)
	ctx := context.Background()

	for _, e := range []Entry{
		{ReminderID: "rem_1", RecipientID: 10, MessageID: 1},
		{ReminderID: "rem_2", RecipientID: 0, MessageID: 2},
		{ReminderID: "rem_3", RecipientID: -5, MessageID: 3},
		{ReminderID: "", RecipientID: 9, MessageID: 4},
	} {
		if err := repo.Put(ctx, e); err != nil {
			t.Fatalf("Failed to put: %v", err)
		}
	}

	n, err := repo.PurgeMalformed(ctx)
	if err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 malformed entries removed, got %d", n)
	}

	n, err = repo.PurgeMalformed(ctx)
	if err != nil {
		t.Fatalf("Failed on repeat purge: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected repeat purge to remove nothing, got %d", n)
	}
}

func TestImportLegacy(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db.SQL)
	ctx := context.Background()

	legacy := map[string]int{
		"rem_1712051112000000000_10": 100,
		"rem_1712051112000000000_20": 200,
		"garbage":                    300,
		"rem_1_abc":                  400,
	}

	imported, skipped, err := repo.ImportLegacy(ctx, legacy)
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	if imported != 2 || skipped != 2 {
		t.Errorf("Expected 2 imported and 2 skipped, got %d and %d", imported, skipped)
	}

	got, err := repo.Get(ctx, "rem_1712051112000000000", 20)
	if err != nil {
		t.Fatalf("Failed to get imported entry: %v", err)
	}
	if got == nil || got.MessageID != 200 {
		t.Errorf("Expected imported message id 200, got %+v", got)
	}
}
