package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
)

// SocialRepository defines persistence operations for reputation, warnings
// and the role shop.
type SocialRepository interface {
	AddReputation(ctx context.Context, userID int64) (int, error)
	GetReputation(ctx context.Context, userID int64) (int, error)
	AddWarning(ctx context.Context, warn domain.Warning) error
	CountWarnings(ctx context.Context, guildID, userID int64) (int, error)
	ListShopRoles(ctx context.Context, guildID int64) ([]domain.ShopRole, error)
	AddShopRole(ctx context.Context, role domain.ShopRole) error
	ShopRoleByID(ctx context.Context, guildID, roleID int64) (domain.ShopRole, bool, error)
	RecordPurchase(ctx context.Context, guildID, userID, roleID int64) (bool, error)
	CountPurchases(ctx context.Context, userID int64) (int, error)
}

type socialRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSocialRepository creates a SQL-backed social repository.
func NewSocialRepository(db *sql.DB, log *slog.Logger) SocialRepository {
	return &socialRepository{
		db:  db,
		log: log,
	}
}

// AddReputation bumps the reputation counter by one and returns the new
// total. The cooldown between awards is enforced by the caller.
func (r *socialRepository) AddReputation(ctx context.Context, userID int64) (int, error) {
	const query = `
		INSERT INTO reputation (user_id, reputation)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET reputation = reputation.reputation + 1
		RETURNING reputation
	`

	var rep int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&rep); err != nil {
		r.logError("add reputation", userID, err)
		return 0, fmt.Errorf("add reputation: %w", err)
	}

	return rep, nil
}

func (r *socialRepository) GetReputation(ctx context.Context, userID int64) (int, error) {
	const query = `
		SELECT reputation FROM reputation WHERE user_id = $1
	`

	var rep int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rep)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		r.logError("get reputation", userID, err)
		return 0, fmt.Errorf("select reputation: %w", err)
	}

	return rep, nil
}

// AddWarning records a moderation warning.
func (r *socialRepository) AddWarning(ctx context.Context, warn domain.Warning) error {
	const query = `
		INSERT INTO warns (guild_id, user_id, moderator_id, reason)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, warn.GuildID, warn.UserID, warn.ModeratorID, warn.Reason)
	if err != nil {
		r.logError("add warning", warn.UserID, err)
		return fmt.Errorf("add warning: %w", err)
	}

	return nil
}

func (r *socialRepository) CountWarnings(ctx context.Context, guildID, userID int64) (int, error) {
	const query = `
		SELECT COUNT(*) FROM warns WHERE guild_id = $1 AND user_id = $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, guildID, userID).Scan(&count); err != nil {
		r.logError("count warnings", userID, err)
		return 0, fmt.Errorf("count warnings: %w", err)
	}

	return count, nil
}

// ListShopRoles returns the purchasable roles of a guild, cheapest first.
func (r *socialRepository) ListShopRoles(ctx context.Context, guildID int64) ([]domain.ShopRole, error) {
	const query = `
		SELECT id, guild_id, role_id, price, description
		FROM shop_roles
		WHERE guild_id = $1
		ORDER BY price ASC
	`

	rows, err := r.db.QueryContext(ctx, query, guildID)
	if err != nil {
		r.logError("list shop roles", 0, err)
		return nil, fmt.Errorf("list shop roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.ShopRole
	for rows.Next() {
		var role domain.ShopRole
		if err := rows.Scan(&role.ID, &role.GuildID, &role.RoleID, &role.Price, &role.Description); err != nil {
			return nil, fmt.Errorf("list shop roles: scan: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

func (r *socialRepository) AddShopRole(ctx context.Context, role domain.ShopRole) error {
	const query = `
		INSERT INTO shop_roles (guild_id, role_id, price, description)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, role.GuildID, role.RoleID, role.Price, role.Description)
	if err != nil {
		r.logError("add shop role", 0, err)
		return fmt.Errorf("add shop role: %w", err)
	}

	return nil
}

func (r *socialRepository) ShopRoleByID(ctx context.Context, guildID, roleID int64) (domain.ShopRole, bool, error) {
	const query = `
		SELECT id, guild_id, role_id, price, description
		FROM shop_roles
		WHERE guild_id = $1 AND role_id = $2
	`

	var role domain.ShopRole
	err := r.db.QueryRowContext(ctx, query, guildID, roleID).Scan(
		&role.ID, &role.GuildID, &role.RoleID, &role.Price, &role.Description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return role, false, nil
		}

		r.logError("shop role by id", 0, err)
		return role, false, fmt.Errorf("select shop role: %w", err)
	}

	return role, true, nil
}

// RecordPurchase records a role purchase. It reports whether the row was
// inserted; the unique constraint on (guild_id, user_id, role_id) rejects a
// repeat purchase of the same role.
func (r *socialRepository) RecordPurchase(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	const query = `
		INSERT INTO purchased_roles (guild_id, user_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id, role_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, guildID, userID, roleID)
	if err != nil {
		r.logError("record purchase", userID, err)
		return false, fmt.Errorf("record purchase: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record purchase: rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *socialRepository) CountPurchases(ctx context.Context, userID int64) (int, error) {
	const query = `
		SELECT COUNT(*) FROM purchased_roles WHERE user_id = $1
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		r.logError("count purchases", userID, err)
		return 0, fmt.Errorf("count purchases: %w", err)
	}

	return count, nil
}

func (r *socialRepository) logError(op string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("social repository operation failed",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
