// Package handlers contains the asynq task handlers for the scheduled jobs.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/arkade-labs/guildxp/internal/jobs"
	"github.com/arkade-labs/guildxp/internal/repository"
)

// SnapshotHandler copies the cumulative counters into the daily history
// tables. The snapshot upserts, so asynq retries are safe.
type SnapshotHandler struct {
	history repository.HistoryRepository
	log     *slog.Logger
}

func NewSnapshotHandler(history repository.HistoryRepository, log *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		history: history,
		log:     log,
	}
}

func (h *SnapshotHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.DailySnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode snapshot payload: %w", err)
	}

	users, err := h.history.SnapshotUsers(ctx, payload.GuildID)
	if err != nil {
		return fmt.Errorf("snapshot users: %w", err)
	}

	if err := h.history.SnapshotServer(ctx, payload.GuildID); err != nil {
		return fmt.Errorf("snapshot server: %w", err)
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "daily snapshot stored",
			slog.Int64("guild_id", payload.GuildID),
			slog.Int64("users", users),
		)
	}

	return nil
}
