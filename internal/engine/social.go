package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/achievement"
	"github.com/arkade-labs/guildxp/internal/domain"
	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/rolesync"
)

// GiveReputation awards one reputation point from giver to recipient. A
// giver can award the same recipient at most once per cooldown window,
// gated by a Redis set-if-absent so two racing awards cannot both pass.
// Crossing the configured threshold grants the reputation reward role.
func (e *Engine) GiveReputation(ctx context.Context, giverID, recipientID int64) (int, error) {
	if giverID == recipientID {
		return 0, fmt.Errorf("cannot give reputation to yourself")
	}

	key := fmt.Sprintf("rep:cooldown:%d:%d", giverID, recipientID)
	acquired, err := e.cooldowns.SetIfAbsent(ctx, key, 1, e.cfg.ReputationCooldown)
	if err != nil {
		return 0, apperrors.NewStorageError("reputation cooldown", err)
	}
	if !acquired {
		return 0, apperrors.NewCooldownError("reputation", int64(e.cfg.ReputationCooldown.Seconds()))
	}

	rep, err := e.social.AddReputation(ctx, recipientID)
	if err != nil {
		return 0, apperrors.NewStorageError("add reputation", err)
	}

	if e.cfg.ReputationRewardRole != "" && rep >= e.cfg.ReputationThreshold {
		if err := e.grantNamedRole(ctx, recipientID, e.cfg.ReputationRewardRole, 0); err != nil {
			e.handleErr(ctx, err)
		}
	}

	e.log.Info("reputation given",
		slog.Int64("giver_id", giverID),
		slog.Int64("recipient_id", recipientID),
		slog.Int("reputation", rep),
	)

	return rep, nil
}

// RecordWarning stores a moderation warning and evaluates warning-triggered
// achievements, which is how the first-warning penalty lands.
func (e *Engine) RecordWarning(ctx context.Context, warn domain.Warning) error {
	if err := e.social.AddWarning(ctx, warn); err != nil {
		return apperrors.NewStorageError("add warning", err)
	}

	count, err := e.social.CountWarnings(ctx, warn.GuildID, warn.UserID)
	if err != nil {
		e.handleErr(ctx, apperrors.NewStorageError("count warnings", err))
		return nil
	}

	if e.guilds.Get(ctx, warn.GuildID).AchievementsEnabled {
		e.evaluator.Evaluate(ctx, warn.UserID, achievement.TriggerWarning, int64(count))
	}

	return nil
}

// PurchaseRole spends coins on a shop role and grants it. The debit is
// rejected on insufficient balance; a role already owned refunds the debit.
func (e *Engine) PurchaseRole(ctx context.Context, userID, roleID int64) error {
	guildCfg := e.guilds.Get(ctx, e.guildID)
	if !guildCfg.EconomyEnabled {
		return fmt.Errorf("economy is disabled for this guild")
	}

	item, found, err := e.social.ShopRoleByID(ctx, e.guildID, roleID)
	if err != nil {
		return apperrors.NewStorageError("shop lookup", err)
	}
	if !found {
		return fmt.Errorf("role %d is not for sale", roleID)
	}

	if err := e.ledger.RemoveCoins(ctx, userID, item.Price); err != nil {
		return err
	}

	inserted, err := e.social.RecordPurchase(ctx, e.guildID, userID, roleID)
	if err != nil || !inserted {
		// Walk the debit back: either the purchase row could not be
		// written or the user already owns the role.
		e.ledger.AddCoins(ctx, userID, item.Price)
		if err != nil {
			return apperrors.NewStorageError("record purchase", err)
		}
		return apperrors.NewDuplicateGrantError(fmt.Sprintf("role %d", roleID))
	}

	if err := e.provider.GrantRole(ctx, e.guildID, userID, roleID); err != nil {
		e.handleErr(ctx, apperrors.NewStorageError("grant purchased role", err))
	}

	e.log.Info("role purchased",
		slog.Int64("user_id", userID),
		slog.Int64("role_id", roleID),
		slog.Int64("price", item.Price),
	)

	if guildCfg.AchievementsEnabled {
		count, err := e.social.CountPurchases(ctx, userID)
		if err == nil {
			e.evaluator.Evaluate(ctx, userID, achievement.TriggerPurchase, int64(count))
		}
	}

	return nil
}

// ListShop returns the guild's purchasable roles.
func (e *Engine) ListShop(ctx context.Context) ([]domain.ShopRole, error) {
	return e.social.ListShopRoles(ctx, e.guildID)
}

// grantNamedRole grants a role by name, creating it if it does not exist.
func (e *Engine) grantNamedRole(ctx context.Context, userID int64, name string, color int) error {
	roles, err := e.provider.ListRoles(ctx, e.guildID)
	if err != nil {
		return apperrors.NewStorageError("list roles", err)
	}

	var target rolesync.Role
	found := false
	for _, r := range roles {
		if r.Name == name {
			target = r
			found = true
			break
		}
	}

	if !found {
		target, err = e.provider.CreateRole(ctx, e.guildID, name, color)
		if err != nil {
			return apperrors.NewRoleNotFoundError(name)
		}
	}

	if err := e.provider.GrantRole(ctx, e.guildID, userID, target.ID); err != nil {
		return apperrors.NewStorageError("grant role", err)
	}

	return nil
}
