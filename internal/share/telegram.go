package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"umaai/internal/logging"
)

// MaxMessageLength is Telegram's limit for one text message, in runes.
const MaxMessageLength = 4096

// sendInterval spaces out the parts of a long message.
const sendInterval = 2 * time.Second

// messageSender is the part of *tgbotapi.BotAPI used here.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts share messages to one chat.
type TelegramSender struct {
	bot      messageSender
	chatID   int64
	interval time.Duration
}

// NewTelegramSender connects to the Bot API with token.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logging.Get(logging.CategoryShare).Info("authorized on telegram as %s", bot.Self.UserName)
	return &TelegramSender{bot: bot, chatID: chatID, interval: sendInterval}, nil
}

// Send posts text, split at line boundaries when it exceeds one message.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	parts := SplitMessage(text, MaxMessageLength)
	for i, part := range parts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.interval):
			}
		}
		msg := tgbotapi.NewMessage(s.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	logging.Get(logging.CategoryShare).Info("shared %d message(s) to chat %d", len(parts), s.chatID)
	return nil
}

// SplitMessage splits text into parts of at most limit runes, preferring line
// breaks. A single line longer than limit is cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var parts []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.TrimRight(string(cur), "\n"))
			cur = cur[:0]
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(cur)+len(r) <= limit {
			cur = append(cur, r...)
			continue
		}
		flush()
		for len(r) > limit {
			parts = append(parts, string(r[:limit]))
			r = r[limit:]
		}
		cur = append(cur, r...)
	}
	flush()
	return parts
}
