package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// migrations ran: the core tables exist
	for _, table := range []string{"users", "recipes", "meal_plans", "reminders", "message_correlations", "delivery_metrics"} {
		var name string
		err := db.SQL.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
}

func TestNewDBRecoversCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Expected recovery from a corrupt file, got %v", err)
	}
	defer db.Close()

	if _, err := db.SQL.Exec(`INSERT INTO users (id, display_name, created_at) VALUES (1, 'x', 'now')`); err != nil {
		t.Fatalf("Expected a usable fresh database, got %v", err)
	}

	// the damaged file was moved aside, not destroyed
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			found = true
		}
	}
	if !found {
		t.Error("Expected the corrupt file to be preserved under a .corrupt suffix")
	}
}
