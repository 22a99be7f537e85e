package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"household-bot/internal/dispatch"
)

// Messenger adapts the Telegram API to the dispatch.Messenger contract.
type Messenger struct {
	api *tgbotapi.BotAPI
}

// NewMessenger wraps an authorized bot API client.
func NewMessenger(api *tgbotapi.BotAPI) *Messenger {
	return &Messenger{api: api}
}

// SendMessage delivers text with inline action buttons and returns the
// platform message id.
func (m *Messenger) SendMessage(_ context.Context, recipientID int64, text string, buttons []dispatch.Button) (int, error) {
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = "Markdown"
	if kb := keyboard(buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

// DeleteMessage retracts a previously delivered message. A message that is
// already gone yields dispatch.ErrNotFound.
func (m *Messenger) DeleteMessage(_ context.Context, recipientID int64, messageID int) error {
	_, err := m.api.Request(tgbotapi.NewDeleteMessage(recipientID, messageID))
	if err != nil {
		return classify(err)
	}
	return nil
}

// EditMessage replaces the text and buttons of a delivered message in place.
func (m *Messenger) EditMessage(_ context.Context, recipientID int64, messageID int, text string, buttons []dispatch.Button) error {
	edit := tgbotapi.NewEditMessageText(recipientID, messageID, text)
	edit.ParseMode = "Markdown"
	if kb := keyboard(buttons); kb != nil {
		edit.ReplyMarkup = kb
	}

	if _, err := m.api.Send(edit); err != nil {
		return classify(err)
	}
	return nil
}

func keyboard(buttons []dispatch.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

// classify maps a Telegram API error onto the dispatch taxonomy.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case isNotFoundMessage(msg):
		return fmt.Errorf("%w: %s", dispatch.ErrNotFound, msg)
	case isUnreachableMessage(msg):
		return &dispatch.DeliveryError{Kind: dispatch.ChatNotFound, Err: err}
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "retry after"):
		return &dispatch.DeliveryError{Kind: dispatch.Transient, Err: err}
	case strings.Contains(msg, "bad request"):
		return &dispatch.DeliveryError{Kind: dispatch.MessageRejected, Err: err}
	default:
		// network failures, 5xx and anything unrecognized: retried next sweep
		return &dispatch.DeliveryError{Kind: dispatch.Transient, Err: err}
	}
}

func isNotFoundMessage(msg string) bool {
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message to edit not found") ||
		strings.Contains(msg, "message is not modified")
}

func isUnreachableMessage(msg string) bool {
	return strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "bot was blocked") ||
		strings.Contains(msg, "user is deactivated")
}
