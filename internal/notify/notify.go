// Package notify delivers tier-change and daily-report events to an external
// channel. Delivery is at-least-once: every event carries a unique ID so a
// consumer seeing a redelivery can deduplicate.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TierChangeEvent reports a member moving between tier roles.
type TierChangeEvent struct {
	EventID string
	GuildID int64
	UserID  int64
	OldTier string
	NewTier string
	Level   int
	XP      int64
	At      time.Time
}

// NewTierChangeEvent builds an event with a fresh ID.
func NewTierChangeEvent(guildID, userID int64, oldTier, newTier string, level int, xp int64) TierChangeEvent {
	return TierChangeEvent{
		EventID: uuid.NewString(),
		GuildID: guildID,
		UserID:  userID,
		OldTier: oldTier,
		NewTier: newTier,
		Level:   level,
		XP:      xp,
		At:      time.Now().UTC(),
	}
}

// DailyReportEvent carries one guild's aggregated numbers for a day.
type DailyReportEvent struct {
	EventID           string
	GuildID           int64
	Day               time.Time
	TotalMessages     int64
	TotalVoiceMinutes int64
	ActiveUsers       int64
	TopChatters       []ReportLine
	TopVoice          []ReportLine
}

// ReportLine is one leaderboard row inside a daily report.
type ReportLine struct {
	UserID int64
	Value  int64
}

// NewDailyReportEvent builds a report event with a fresh ID.
func NewDailyReportEvent(guildID int64, day time.Time) DailyReportEvent {
	return DailyReportEvent{
		EventID: uuid.NewString(),
		GuildID: guildID,
		Day:     day,
	}
}

// Notifier is the outbound delivery channel. Implementations must tolerate
// redelivery of the same EventID.
type Notifier interface {
	TierChanged(ctx context.Context, event TierChangeEvent) error
	DailyReport(ctx context.Context, event DailyReportEvent) error
}

// LogNotifier writes events to the log. Used when no relay is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-only Notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) TierChanged(_ context.Context, event TierChangeEvent) error {
	n.log.Info("tier changed",
		slog.String("event_id", event.EventID),
		slog.Int64("guild_id", event.GuildID),
		slog.Int64("user_id", event.UserID),
		slog.String("old_tier", event.OldTier),
		slog.String("new_tier", event.NewTier),
		slog.Int("level", event.Level),
		slog.Int64("xp", event.XP),
	)
	return nil
}

func (n *LogNotifier) DailyReport(_ context.Context, event DailyReportEvent) error {
	n.log.Info("daily report",
		slog.String("event_id", event.EventID),
		slog.Int64("guild_id", event.GuildID),
		slog.Int64("messages", event.TotalMessages),
		slog.Int64("voice_minutes", event.TotalVoiceMinutes),
		slog.Int64("active_users", event.ActiveUsers),
	)
	return nil
}
