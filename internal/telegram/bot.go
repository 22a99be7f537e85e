package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"household-bot/internal/config"
	"household-bot/internal/dispatch"
	"household-bot/internal/metrics"
	"household-bot/internal/reminder"
	"household-bot/internal/user"
)

// Bot is the thin conversational front end. It validates who is talking,
// keeps the user table fresh and routes button presses into the engine; all
// scheduling semantics live in the core.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          *config.Config
	engine       *reminder.Engine
	users        *user.Repository
	metricsStore *metrics.Store
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, engine *reminder.Engine, users *user.Repository, metricsStore *metrics.Store) (*Bot, *tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	if cfg.TelegramWebhookURL != "" {
		wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		resp, err := api.Request(wh)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		log.Printf("Webhook set response: %s", resp.Description)
	}

	return &Bot{
		api:          api,
		cfg:          cfg,
		engine:       engine,
		users:        users,
		metricsStore: metricsStore,
	}, api, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	if !b.cfg.IsAllowed(from.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", from.ID, from.UserName)
		return
	}

	if err := b.users.Ensure(r.Context(), from.ID, displayName(from)); err != nil {
		log.Printf("Failed to ensure user %d: %v", from.ID, err)
	}

	b.processMessage(r.Context(), update.Message)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.Text == "/status":
		b.handleStatusRequest(msg)
	case msg.Text == "/start":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "👋 I'll keep track of the household reminders and shopping for meal plans.")
		b.api.Send(reply)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if query.From == nil || !b.cfg.IsAllowed(query.From.ID) {
		return
	}

	action, reminderID, ok := splitCallback(query.Data)
	if !ok {
		return
	}

	ctx := context.Background()
	if err := b.users.Ensure(ctx, query.From.ID, displayName(query.From)); err != nil {
		log.Printf("Failed to ensure user %d: %v", query.From.ID, err)
	}

	var err error
	var toast string
	switch action {
	case dispatch.ActionDone:
		err = b.engine.MarkDone(ctx, reminderID, query.From.ID)
		toast = "Done ✅"
	case dispatch.ActionBought:
		err = b.engine.MarkDone(ctx, reminderID, query.From.ID)
		toast = "Bought, next week is planned 🛒"
	case dispatch.ActionNotYet, dispatch.ActionNotBought:
		err = b.engine.MarkNotDone(ctx, reminderID, query.From.ID)
		toast = "Okay, I'll keep nagging ⏰"
	default:
		return
	}

	if errors.Is(err, reminder.ErrNotFound) {
		toast = "That reminder is already gone"
		err = nil
	}
	if errors.Is(err, reminder.ErrNotRecipient) {
		toast = "That reminder isn't addressed to you"
		err = nil
	}
	if err != nil {
		log.Printf("Callback %s for reminder %s: %v", action, reminderID, err)
		toast = "Something went wrong, try again"
	}

	b.api.Request(tgbotapi.NewCallback(query.ID, toast))
}

func (b *Bot) handleStatusRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminUserID {
		b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "⛔ *Access Denied*: Admin only."))
		return
	}
	b.sendStatusReport(msg.Chat.ID)
}

func (b *Bot) sendStatusReport(chatID int64) {
	activity, err := b.metricsStore.GetDailyActivity(7)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, "❌ Error fetching metrics."))
		return
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("📨 *Recent Deliveries*\n")
	if len(activity) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range activity {
		sb.WriteString(fmt.Sprintf("• *%s*: %d delivered, %d failed, %d dropped\n",
			d.Date, d.Delivered, d.Failed, d.Dropped))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	report := tgbotapi.NewMessage(chatID, sb.String())
	report.ParseMode = "Markdown"
	b.api.Send(report)
}

// splitCallback parses "action|reminderID" callback data. Reminder ids may
// contain anything but '|', so the split happens on the first separator.
func splitCallback(data string) (action, reminderID string, ok bool) {
	i := strings.Index(data, "|")
	if i <= 0 || i == len(data)-1 {
		return "", "", false
	}
	return data[:i], data[i+1:], true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
