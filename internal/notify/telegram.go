package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/pkg/config"
)

// TelegramNotifier relays events to a Telegram chat. Sends go through a
// circuit breaker so a Telegram outage degrades to dropped notifications
// instead of a growing backlog of blocked handlers.
type TelegramNotifier struct {
	bot     *telebot.Bot
	chat    *telebot.Chat
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// NewTelegramNotifier builds the relay. The bot is send-only; its update
// poller is never started.
func NewTelegramNotifier(cfg config.TelegramConfig, log *slog.Logger) (*TelegramNotifier, error) {
	if log == nil {
		log = slog.Default()
	}

	tb, err := telebot.NewBot(telebot.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return &TelegramNotifier{
		bot:     tb,
		chat:    &telebot.Chat{ID: cfg.ChatID},
		breaker: apperrors.NewCircuitBreaker(),
		log:     log,
	}, nil
}

func (n *TelegramNotifier) TierChanged(_ context.Context, event TierChangeEvent) error {
	var text strings.Builder
	if event.OldTier == "" {
		fmt.Fprintf(&text, "🏅 User %d reached tier *%s*\n", event.UserID, event.NewTier)
	} else {
		fmt.Fprintf(&text, "🏅 User %d promoted: %s → *%s*\n", event.UserID, event.OldTier, event.NewTier)
	}
	fmt.Fprintf(&text, "_event %s_", event.EventID)

	return n.send(event.EventID, text.String())
}

func (n *TelegramNotifier) DailyReport(_ context.Context, event DailyReportEvent) error {
	var text strings.Builder
	fmt.Fprintf(&text, "📊 *Daily report* for %s\n", event.Day.Format("2006-01-02"))
	fmt.Fprintf(&text, "Messages: %d\n", event.TotalMessages)
	fmt.Fprintf(&text, "Voice minutes: %d\n", event.TotalVoiceMinutes)
	fmt.Fprintf(&text, "Active users: %d\n", event.ActiveUsers)

	if len(event.TopChatters) > 0 {
		text.WriteString("\nTop chatters:\n")
		for i, line := range event.TopChatters {
			fmt.Fprintf(&text, "%d. user %d - %d messages\n", i+1, line.UserID, line.Value)
		}
	}
	if len(event.TopVoice) > 0 {
		text.WriteString("\nTop voice:\n")
		for i, line := range event.TopVoice {
			fmt.Fprintf(&text, "%d. user %d - %d minutes\n", i+1, line.UserID, line.Value)
		}
	}
	fmt.Fprintf(&text, "\n_event %s_", event.EventID)

	return n.send(event.EventID, text.String())
}

func (n *TelegramNotifier) send(eventID, text string) error {
	err := n.breaker.Call(func() error {
		_, sendErr := n.bot.Send(n.chat, text, telebot.ModeMarkdown)
		return sendErr
	})
	if err != nil {
		n.log.Warn("notification dropped",
			slog.String("event_id", eventID),
			slog.Any("error", err),
		)
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}
