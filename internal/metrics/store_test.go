package metrics

import (
	"path/filepath"
	"testing"

	"household-bot/internal/database"
)

func TestStore(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db.SQL)
	store.RecordDelivery("rem_1", 10, "sent")
	store.RecordDelivery("rem_1", 20, "replaced")
	store.RecordDelivery("rem_1", 30, "failed")
	store.RecordDelivery("rem_2", 10, "dropped")

	activity, err := store.GetDailyActivity(7)
	if err != nil {
		t.Fatalf("Failed to get daily activity: %v", err)
	}
	if len(activity) != 1 {
		t.Fatalf("Expected one day of activity, got %d", len(activity))
	}
	day := activity[0]
	if day.Delivered != 2 || day.Failed != 1 || day.Dropped != 1 {
		t.Errorf("Unexpected totals: %+v", day)
	}

	// today's records are inside the retention window
	n, err := store.Cleanup(30)
	if err != nil {
		t.Fatalf("Failed to clean up: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected nothing to be cleaned, got %d", n)
	}
}
