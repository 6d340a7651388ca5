// Package repository contains the SQL persistence layer. Every counter
// mutation is a single upsert statement so concurrent writers never lose an
// increment to the same row.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
)

// ActivityRepository defines persistence operations for the raw activity
// counters.
type ActivityRepository interface {
	IncrementMessages(ctx context.Context, userID int64) (int64, error)
	IncrementVoiceMinutes(ctx context.Context, userID int64, minutes int64) (int64, error)
	GetStats(ctx context.Context, userID int64) (domain.UserStats, error)
	TopByMessages(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	TopByVoice(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type activityRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewActivityRepository creates a SQL-backed activity repository.
func NewActivityRepository(db *sql.DB, log *slog.Logger) ActivityRepository {
	return &activityRepository{
		db:  db,
		log: log,
	}
}

// IncrementMessages bumps the message counter by one, creating the row on
// first activity, and returns the new total.
func (r *activityRepository) IncrementMessages(ctx context.Context, userID int64) (int64, error) {
	const query = `
		INSERT INTO activity (user_id, messages)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET messages = activity.messages + 1
		RETURNING messages
	`

	var messages int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&messages); err != nil {
		r.logError("increment messages", userID, err)
		return 0, fmt.Errorf("increment messages: %w", err)
	}

	return messages, nil
}

// IncrementVoiceMinutes credits whole voice minutes and returns the new total.
func (r *activityRepository) IncrementVoiceMinutes(ctx context.Context, userID int64, minutes int64) (int64, error) {
	const query = `
		INSERT INTO activity (user_id, voice_minutes)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET voice_minutes = activity.voice_minutes + EXCLUDED.voice_minutes
		RETURNING voice_minutes
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, userID, minutes).Scan(&total); err != nil {
		r.logError("increment voice minutes", userID, err)
		return 0, fmt.Errorf("increment voice minutes: %w", err)
	}

	return total, nil
}

// GetStats returns the counters for a user. A user with no recorded activity
// reads as all zeroes.
func (r *activityRepository) GetStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	const query = `
		SELECT messages, voice_minutes
		FROM activity
		WHERE user_id = $1
	`

	stats := domain.UserStats{UserID: userID}

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.Messages, &stats.VoiceMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats, nil
		}

		r.logError("get stats", userID, err)
		return stats, fmt.Errorf("select activity stats: %w", err)
	}

	return stats, nil
}

func (r *activityRepository) TopByMessages(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, messages
		FROM activity
		ORDER BY messages DESC
		LIMIT $1
	`

	return r.queryLeaderboard(ctx, query, limit, "top by messages")
}

func (r *activityRepository) TopByVoice(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, voice_minutes
		FROM activity
		ORDER BY voice_minutes DESC
		LIMIT $1
	`

	return r.queryLeaderboard(ctx, query, limit, "top by voice")
}

func (r *activityRepository) queryLeaderboard(ctx context.Context, query string, limit int, op string) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logError(op, 0, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Value); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *activityRepository) logError(op string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("activity repository operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
