package notification

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ChatSender delivers a plain text message to a chat.
type ChatSender interface {
	SendText(text string) error
}

// TelegramSender posts messages to one Telegram chat.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender authorizes the bot token.
func NewTelegramSender(token string, chatID int64, logger *zap.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram bot: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	return nil
}
