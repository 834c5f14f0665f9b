package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"leadmarket/models"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram mirrors notifications into an operator chat.
type Telegram struct {
	api    messageSender
	chatID int64
}

// NewTelegram connects a bot with token and targets chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot init: %w", err)
	}
	api.Debug = false
	return &Telegram{api: api, chatID: chatID}, nil
}

// Dispatch implements ledger.Dispatcher.
func (t *Telegram) Dispatch(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("To %s (%s):\n%s", n.BuyerName, n.BuyerPhone, FormatMessage(n))
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
