package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the application.
type Config struct {
	// Telegram Config
	TelegramBotToken   string
	TelegramWebhookURL string
	AllowedUserIDs     []int64
	AdminUserID        int64

	DatabasePath string
	Port         string

	// Location used for quiet hours, meal dates and send windows.
	Location *time.Location

	// SendOverdueSameDay keeps the historical behavior of delivering a
	// reminder that is more than 30 minutes overdue as long as its due
	// date is still today. Set SEND_OVERDUE_SAME_DAY=false to skip those
	// until the next occurrence instead.
	SendOverdueSameDay bool
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	webhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")

	allowed, err := parseUserIDs(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}

	var adminID int64
	if raw := os.Getenv("ADMIN_USER_ID"); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_USER_ID: %w", err)
		}
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/household.db"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	loc := time.Local
	if name := os.Getenv("TZ_LOCATION"); name != "" {
		loc, err = time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ_LOCATION %q: %w", name, err)
		}
	}

	sendOverdue := true
	if raw := os.Getenv("SEND_OVERDUE_SAME_DAY"); raw != "" {
		sendOverdue, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SEND_OVERDUE_SAME_DAY: %w", err)
		}
	}

	return &Config{
		TelegramBotToken:   token,
		TelegramWebhookURL: webhookURL,
		AllowedUserIDs:     allowed,
		AdminUserID:        adminID,
		DatabasePath:       dbPath,
		Port:               port,
		Location:           loc,
		SendOverdueSameDay: sendOverdue,
	}, nil
}

// IsAllowed reports whether the given user id is on the static allow-list.
// An empty allow-list rejects everyone.
func (c *Config) IsAllowed(userID int64) bool {
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseUserIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("user id %q is not numeric", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
