package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
)

// AchievementRepository defines persistence operations for achievement
// definitions and grants.
type AchievementRepository interface {
	UpsertDefinition(ctx context.Context, def domain.AchievementDefinition) (int64, error)
	DefinitionByName(ctx context.Context, name string) (domain.AchievementDefinition, bool, error)
	InsertGrant(ctx context.Context, userID, achievementID int64) (bool, error)
	ListGrants(ctx context.Context, userID int64) ([]domain.AchievementGrant, error)
}

type achievementRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAchievementRepository creates a SQL-backed achievement repository.
func NewAchievementRepository(db *sql.DB, log *slog.Logger) AchievementRepository {
	return &achievementRepository{
		db:  db,
		log: log,
	}
}

// UpsertDefinition registers an achievement definition by name and returns
// its ID. Reward fields are refreshed on every startup so config changes take
// effect without a migration.
func (r *achievementRepository) UpsertDefinition(ctx context.Context, def domain.AchievementDefinition) (int64, error) {
	const query = `
		INSERT INTO achievement_def (name, description, xp_reward, coin_reward, icon)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
			SET description = EXCLUDED.description,
			    xp_reward = EXCLUDED.xp_reward,
			    coin_reward = EXCLUDED.coin_reward,
			    icon = EXCLUDED.icon
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		def.Name, def.Description, def.XPReward, def.CoinReward, def.Icon,
	).Scan(&id)
	if err != nil {
		r.logError("upsert definition", 0, err)
		return 0, fmt.Errorf("upsert achievement definition: %w", err)
	}

	return id, nil
}

// DefinitionByName looks up a definition. The second return reports whether
// the definition exists.
func (r *achievementRepository) DefinitionByName(ctx context.Context, name string) (domain.AchievementDefinition, bool, error) {
	const query = `
		SELECT id, name, description, xp_reward, coin_reward, icon
		FROM achievement_def
		WHERE name = $1
	`

	var def domain.AchievementDefinition
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&def.ID, &def.Name, &def.Description, &def.XPReward, &def.CoinReward, &def.Icon,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return def, false, nil
		}

		r.logError("definition by name", 0, err)
		return def, false, fmt.Errorf("select achievement definition: %w", err)
	}

	return def, true, nil
}

// InsertGrant records that a user earned an achievement. It reports whether
// the row was inserted: the unique constraint on (user_id, achievement_id)
// turns concurrent duplicate awards into a single winner, so a false return
// means someone else already granted it.
func (r *achievementRepository) InsertGrant(ctx context.Context, userID, achievementID int64) (bool, error) {
	const query = `
		INSERT INTO achievement_grant (user_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, userID, achievementID)
	if err != nil {
		r.logError("insert grant", userID, err)
		return false, fmt.Errorf("insert achievement grant: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert achievement grant: rows affected: %w", err)
	}

	return affected == 1, nil
}

// ListGrants returns every achievement the user has earned, newest first.
func (r *achievementRepository) ListGrants(ctx context.Context, userID int64) ([]domain.AchievementGrant, error) {
	const query = `
		SELECT user_id, achievement_id, earned_at
		FROM achievement_grant
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logError("list grants", userID, err)
		return nil, fmt.Errorf("list achievement grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.AchievementGrant
	for rows.Next() {
		var grant domain.AchievementGrant
		if err := rows.Scan(&grant.UserID, &grant.AchievementID, &grant.EarnedAt); err != nil {
			return nil, fmt.Errorf("list achievement grants: scan: %w", err)
		}
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

func (r *achievementRepository) logError(op string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("achievement repository operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
