package alerting

import (
	"context"
	"fmt"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink posts alerts to the operators' chats.
type TelegramSink struct {
	bot     domain.TelegramSender
	chatIDs []int64
}

func NewTelegramSink(bot domain.TelegramSender, chatIDs []int64) *TelegramSink {
	return &TelegramSink{bot: bot, chatIDs: chatIDs}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, alert Alert) error {
	text := formatTelegram(alert)
	for _, chatID := range s.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = models.ParseModeMarkdown
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	return nil
}

func formatTelegram(alert Alert) string {
	icon := "⚠️"
	if alert.Severity == models.SeverityCritical {
		icon = "🚨"
	}
	text := fmt.Sprintf("%s *%s*\n", icon, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, alert.Title))
	for _, l := range alert.Lines {
		text += "• " + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, l) + "\n"
	}
	return text
}
