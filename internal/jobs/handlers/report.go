package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arkade-labs/guildxp/internal/guildconfig"
	"github.com/arkade-labs/guildxp/internal/jobs"
	"github.com/arkade-labs/guildxp/internal/notify"
	"github.com/arkade-labs/guildxp/internal/repository"
)

const reportTopN = 5

// GuildConfigs narrows the guild config service to what the report needs.
type GuildConfigs interface {
	Get(ctx context.Context, guildID int64) guildconfig.Config
}

// ReportHandler assembles the daily activity report and hands it to the
// notifier. Delivery is at-least-once: an asynq retry after a partial
// failure sends the report again with a new event ID.
type ReportHandler struct {
	history  repository.HistoryRepository
	activity repository.ActivityRepository
	guilds   GuildConfigs
	notifier notify.Notifier
	log      *slog.Logger
}

func NewReportHandler(
	history repository.HistoryRepository,
	activity repository.ActivityRepository,
	guilds GuildConfigs,
	notifier notify.Notifier,
	log *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		history:  history,
		activity: activity,
		guilds:   guilds,
		notifier: notifier,
		log:      log,
	}
}

func (h *ReportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.DailyReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode report payload: %w", err)
	}

	if !h.guilds.Get(ctx, payload.GuildID).DailyReport {
		return nil
	}

	day := payload.Day
	if day.IsZero() {
		// Scheduled runs carry no day; report on yesterday.
		day = time.Now().UTC().AddDate(0, 0, -1)
	}

	event := notify.NewDailyReportEvent(payload.GuildID, day)

	rows, err := h.history.ServerHistory(ctx, payload.GuildID, 1)
	if err != nil {
		return fmt.Errorf("load server history: %w", err)
	}
	if len(rows) > 0 {
		event.TotalMessages = rows[0].TotalMessages
		event.TotalVoiceMinutes = rows[0].TotalVoiceMinutes
		event.ActiveUsers = rows[0].ActiveUsers
	}

	if top, err := h.activity.TopByMessages(ctx, reportTopN); err == nil {
		for _, entry := range top {
			event.TopChatters = append(event.TopChatters, notify.ReportLine{UserID: entry.UserID, Value: entry.Value})
		}
	}
	if top, err := h.activity.TopByVoice(ctx, reportTopN); err == nil {
		for _, entry := range top {
			event.TopVoice = append(event.TopVoice, notify.ReportLine{UserID: entry.UserID, Value: entry.Value})
		}
	}

	if err := h.notifier.DailyReport(ctx, event); err != nil {
		return fmt.Errorf("deliver report: %w", err)
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "daily report delivered",
			slog.Int64("guild_id", payload.GuildID),
			slog.String("event_id", event.EventID),
		)
	}

	return nil
}
