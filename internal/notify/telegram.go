package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers messages through the Telegram bot API using
// markdown formatting, with link previews disabled so position links do
// not unfurl into charts.
type TelegramSender struct {
	api *tgbotapi.BotAPI
}

// NewTelegramSender wraps an authorized bot API client.
func NewTelegramSender(api *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

func (s *TelegramSender) Send(msg Message) error {
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text())
	out.ParseMode = tgbotapi.ModeMarkdown
	out.DisableWebPagePreview = true
	_, err := s.api.Send(out)
	return err
}
