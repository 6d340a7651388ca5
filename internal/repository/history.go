package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
)

// HistoryRepository defines persistence operations for the daily activity
// snapshots.
type HistoryRepository interface {
	SnapshotUsers(ctx context.Context, guildID int64) (int64, error)
	SnapshotServer(ctx context.Context, guildID int64) error
	UserHistory(ctx context.Context, guildID, userID int64, days int) ([]domain.DailyUserStats, error)
	ServerHistory(ctx context.Context, guildID int64, days int) ([]domain.DailyServerStats, error)
}

type historyRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewHistoryRepository creates a SQL-backed history repository.
func NewHistoryRepository(db *sql.DB, log *slog.Logger) HistoryRepository {
	return &historyRepository{
		db:  db,
		log: log,
	}
}

// SnapshotUsers copies the current cumulative counters of every active user
// into today's history rows. Re-running on the same day overwrites the rows,
// so the job is safe to retry.
func (r *historyRepository) SnapshotUsers(ctx context.Context, guildID int64) (int64, error) {
	const query = `
		INSERT INTO user_history (user_id, guild_id, day, voice_minutes, messages)
		SELECT user_id, $1, CURRENT_DATE, voice_minutes, messages
		FROM activity
		WHERE messages > 0 OR voice_minutes > 0
		ON CONFLICT (user_id, guild_id, day) DO UPDATE
			SET voice_minutes = EXCLUDED.voice_minutes,
			    messages = EXCLUDED.messages
	`

	res, err := r.db.ExecContext(ctx, query, guildID)
	if err != nil {
		r.logError("snapshot users", err)
		return 0, fmt.Errorf("snapshot users: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("snapshot users: rows affected: %w", err)
	}

	return affected, nil
}

// SnapshotServer aggregates today's totals for a guild into one history row.
func (r *historyRepository) SnapshotServer(ctx context.Context, guildID int64) error {
	const query = `
		INSERT INTO server_history (guild_id, day, total_messages, total_voice_minutes, active_users)
		SELECT $1, CURRENT_DATE,
		       COALESCE(SUM(messages), 0),
		       COALESCE(SUM(voice_minutes), 0),
		       COUNT(*) FILTER (WHERE messages > 0 OR voice_minutes > 0)
		FROM activity
		ON CONFLICT (guild_id, day) DO UPDATE
			SET total_messages = EXCLUDED.total_messages,
			    total_voice_minutes = EXCLUDED.total_voice_minutes,
			    active_users = EXCLUDED.active_users
	`

	if _, err := r.db.ExecContext(ctx, query, guildID); err != nil {
		r.logError("snapshot server", err)
		return fmt.Errorf("snapshot server: %w", err)
	}

	return nil
}

// UserHistory returns the last N daily rows for a user, newest first.
func (r *historyRepository) UserHistory(ctx context.Context, guildID, userID int64, days int) ([]domain.DailyUserStats, error) {
	const query = `
		SELECT user_id, guild_id, day, voice_minutes, messages
		FROM user_history
		WHERE guild_id = $1 AND user_id = $2
		ORDER BY day DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, guildID, userID, days)
	if err != nil {
		r.logError("user history", err)
		return nil, fmt.Errorf("user history: %w", err)
	}
	defer rows.Close()

	var stats []domain.DailyUserStats
	for rows.Next() {
		var row domain.DailyUserStats
		if err := rows.Scan(&row.UserID, &row.GuildID, &row.Day, &row.VoiceMinutes, &row.Messages); err != nil {
			return nil, fmt.Errorf("user history: scan: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// ServerHistory returns the last N daily rows for a guild, newest first.
func (r *historyRepository) ServerHistory(ctx context.Context, guildID int64, days int) ([]domain.DailyServerStats, error) {
	const query = `
		SELECT guild_id, day, total_messages, total_voice_minutes, active_users
		FROM server_history
		WHERE guild_id = $1
		ORDER BY day DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, guildID, days)
	if err != nil {
		r.logError("server history", err)
		return nil, fmt.Errorf("server history: %w", err)
	}
	defer rows.Close()

	var stats []domain.DailyServerStats
	for rows.Next() {
		var row domain.DailyServerStats
		if err := rows.Scan(&row.GuildID, &row.Day, &row.TotalMessages, &row.TotalVoiceMinutes, &row.ActiveUsers); err != nil {
			return nil, fmt.Errorf("server history: scan: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

func (r *historyRepository) logError(op string, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("history repository operation failed",
		slog.String("operation", op),
		slog.Any("error", err),
	)
}
