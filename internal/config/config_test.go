package config

import (
	"os"
	"testing"
)

func TestNewFromEnv(t *testing.T) {
	// registers the cleanup on the subtest, so values never leak between
	// subtests
	setEnv := func(t *testing.T, key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	t.Run("Success", func(t *testing.T) {
		setEnv(t, "TELEGRAM_BOT_TOKEN", "123:abc")
		setEnv(t, "TELEGRAM_ALLOWED_USER_IDS", "100, 200,300")
		setEnv(t, "DATABASE_PATH", "/tmp/test.db")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.TelegramBotToken != "123:abc" {
			t.Errorf("Expected token '123:abc', got '%s'", cfg.TelegramBotToken)
		}
		if len(cfg.AllowedUserIDs) != 3 || cfg.AllowedUserIDs[1] != 200 {
			t.Errorf("Expected allow-list [100 200 300], got %v", cfg.AllowedUserIDs)
		}
		if cfg.DatabasePath != "/tmp/test.db" {
			t.Errorf("Expected database path '/tmp/test.db', got '%s'", cfg.DatabasePath)
		}
		if !cfg.SendOverdueSameDay {
			t.Error("Expected SendOverdueSameDay to default to true")
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		os.Unsetenv("TELEGRAM_BOT_TOKEN")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing TELEGRAM_BOT_TOKEN, got nil")
		}
		expectedError := "TELEGRAM_BOT_TOKEN environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		setEnv(t, "TELEGRAM_BOT_TOKEN", "123:abc")
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("PORT")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.DatabasePath != "data/household.db" {
			t.Errorf("Expected default database path, got '%s'", cfg.DatabasePath)
		}
		if cfg.Port != "8080" {
			t.Errorf("Expected default port 8080, got '%s'", cfg.Port)
		}
	})

	t.Run("BadAllowList", func(t *testing.T) {
		setEnv(t, "TELEGRAM_BOT_TOKEN", "123:abc")
		setEnv(t, "TELEGRAM_ALLOWED_USER_IDS", "100,bob")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for non-numeric user id, got nil")
		}
	})

	t.Run("OverdueFlag", func(t *testing.T) {
		setEnv(t, "TELEGRAM_BOT_TOKEN", "123:abc")
		setEnv(t, "SEND_OVERDUE_SAME_DAY", "false")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.SendOverdueSameDay {
			t.Error("Expected SendOverdueSameDay to be false")
		}
	})
}

func TestIsAllowed(t *testing.T) {
	cfg := &Config{AllowedUserIDs: []int64{1, 2}}
	if !cfg.IsAllowed(2) {
		t.Error("Expected user 2 to be allowed")
	}
	if cfg.IsAllowed(3) {
		t.Error("Expected user 3 to be rejected")
	}

	empty := &Config{}
	if empty.IsAllowed(1) {
		t.Error("Expected empty allow-list to reject everyone")
	}
}
