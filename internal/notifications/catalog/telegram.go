// internal/notifications/catalog/telegram.go
package catalog

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func telegramEntry() *Entry {
	return &Entry{
		Type:  "telegram",
		Label: "Telegram",
		Parameters: map[string]Parameter{
			"bot_token":  {Label: "Bot Token", Type: TypePassword, Required: true, Sensitive: true},
			"chat_ids":   {Label: "Destination Chat IDs", Type: TypeList, Required: true},
			"parse_mode": {Label: "Parse Mode", Type: TypeString, Default: ""},
		},
		RecipientParameter: "chat_ids",
		build:              buildTelegram,
	}
}

type telegramBackend struct {
	bot       *bot.Bot
	parseMode models.ParseMode
}

func buildTelegram(deps *Dependencies, p Params) (Backend, error) {
	if err := p.require("bot_token"); err != nil {
		return nil, err
	}

	opts := []bot.Option{bot.WithSkipGetMe()}
	if deps.TelegramServerURL != "" {
		opts = append(opts, bot.WithServerURL(deps.TelegramServerURL))
	}
	b, err := bot.New(p.String("bot_token"), opts...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &telegramBackend{bot: b, parseMode: models.ParseMode(p.String("parse_mode"))}, nil
}

func (b *telegramBackend) FormatBody(body map[string]interface{}) interface{} {
	return textBody(body)
}

func (b *telegramBackend) Send(ctx context.Context, msg Message) (int, error) {
	sent := 0
	for _, chatID := range msg.Recipients {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      msg.Subject,
			ParseMode: b.parseMode,
		}
		if _, err := b.bot.SendMessage(ctx, params); err != nil {
			return sent, fmt.Errorf("telegram send to %s: %w", chatID, err)
		}
		sent++
	}
	return sent, nil
}
