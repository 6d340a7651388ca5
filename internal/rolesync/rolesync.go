// Package rolesync keeps a member's tier role aligned with their level. The
// sync is a pure diff against a snapshot of the member's current roles, so
// calling it redundantly on every activity event is safe and cheap.
package rolesync

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/progression"
	"github.com/arkade-labs/guildxp/pkg/metrics"
)

// Role is a guild role as seen through the authorization API.
type Role struct {
	ID       int64
	Name     string
	Position int
}

// RoleProvider is the slice of the authorization API the synchronizer needs.
// The gateway implementation backs it with the session state cache.
type RoleProvider interface {
	ListRoles(ctx context.Context, guildID int64) ([]Role, error)
	CreateRole(ctx context.Context, guildID int64, name string, color int) (Role, error)
	MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error)
	GrantRole(ctx context.Context, guildID, userID, roleID int64) error
	RevokeRole(ctx context.Context, guildID, userID, roleID int64) error
	ActorTopPosition(ctx context.Context, guildID int64) (int, error)
}

// TierChangedFunc is notified after a successful tier grant. Delivery is
// at-least-once; consumers must deduplicate.
type TierChangedFunc func(ctx context.Context, guildID, userID int64, oldTier, newTier string)

// Synchronizer applies the tier-role diff for one member.
type Synchronizer struct {
	provider      RoleProvider
	ladder        progression.Ladder
	defaultRole   string
	onTierChanged TierChangedFunc
	log           *slog.Logger
}

// New creates a Synchronizer. defaultRole is the baseline placeholder role
// held before any tier is reached; it is revoked when the first tier lands.
func New(provider RoleProvider, ladder progression.Ladder, defaultRole string, onTierChanged TierChangedFunc, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}

	return &Synchronizer{
		provider:      provider,
		ladder:        ladder,
		defaultRole:   defaultRole,
		onTierChanged: onTierChanged,
		log:           log,
	}
}

// SyncTier reconciles the member's tier role with their level. It reports
// whether any role changed. Below the first tier threshold it does nothing:
// the baseline role stays until a tier is earned.
func (s *Synchronizer) SyncTier(ctx context.Context, guildID, userID int64, level int) (bool, error) {
	target, ok := s.ladder.TierForLevel(level)
	if !ok {
		return false, nil
	}

	roles, err := s.provider.ListRoles(ctx, guildID)
	if err != nil {
		metrics.RecordRoleSync("error")
		return false, apperrors.NewStorageError("list roles", err)
	}

	byName := lo.KeyBy(roles, func(r Role) string { return r.Name })
	byID := lo.KeyBy(roles, func(r Role) int64 { return r.ID })

	// Snapshot of the member's roles, filtered down to the ones we manage:
	// every ladder role plus the baseline role.
	memberRoleIDs, err := s.provider.MemberRoles(ctx, guildID, userID)
	if err != nil {
		metrics.RecordRoleSync("error")
		return false, apperrors.NewStorageError("member roles", err)
	}

	managed := append(s.ladder.Names(), s.defaultRole)
	held := lo.Filter(memberRoleIDs, func(id int64, _ int) bool {
		role, ok := byID[id]
		return ok && lo.Contains(managed, role.Name)
	})

	targetRole, exists := byName[target.Name]
	if len(held) == 1 && exists && held[0] == targetRole.ID {
		metrics.RecordRoleSync("noop")
		return false, nil
	}

	if !exists {
		targetRole, err = s.provider.CreateRole(ctx, guildID, target.Name, target.Color)
		if err != nil {
			metrics.RecordRoleSync("error")
			return false, apperrors.NewRoleNotFoundError(target.Name)
		}
		byID[targetRole.ID] = targetRole
	}

	actorTop, err := s.provider.ActorTopPosition(ctx, guildID)
	if err != nil {
		metrics.RecordRoleSync("error")
		return false, apperrors.NewStorageError("actor position", err)
	}
	if actorTop <= targetRole.Position {
		metrics.RecordRoleSync("insufficient_rank")
		return false, apperrors.NewInsufficientRankError(target.Name)
	}

	oldTier := s.heldTierName(held, byID)

	changed := false
	for _, id := range held {
		if id == targetRole.ID {
			continue
		}
		if err := s.provider.RevokeRole(ctx, guildID, userID, id); err != nil {
			metrics.RecordRoleSync("error")
			return changed, apperrors.NewStorageError("revoke role", err)
		}
		changed = true
	}

	if !lo.Contains(held, targetRole.ID) {
		if err := s.grantWithRetry(ctx, guildID, userID, target, &targetRole, byName); err != nil {
			metrics.RecordRoleSync("error")
			return changed, err
		}
		changed = true
	}

	if changed {
		metrics.RecordRoleSync("changed")
		s.log.Info("tier role synchronized",
			slog.Int64("guild_id", guildID),
			slog.Int64("user_id", userID),
			slog.String("tier", target.Name),
		)
		if s.onTierChanged != nil {
			s.onTierChanged(ctx, guildID, userID, oldTier, target.Name)
		}
	}

	return changed, nil
}

// grantWithRetry grants the target role, re-creating it once if the grant
// fails because the role vanished between the snapshot and the apply.
func (s *Synchronizer) grantWithRetry(ctx context.Context, guildID, userID int64, target progression.Tier, targetRole *Role, byName map[string]Role) error {
	err := s.provider.GrantRole(ctx, guildID, userID, targetRole.ID)
	if err == nil {
		return nil
	}

	s.log.Warn("tier role grant failed, recreating role",
		slog.Int64("guild_id", guildID),
		slog.String("role", target.Name),
		slog.Any("error", err),
	)

	recreated, createErr := s.provider.CreateRole(ctx, guildID, target.Name, target.Color)
	if createErr != nil {
		return apperrors.NewRoleNotFoundError(target.Name)
	}
	byName[target.Name] = recreated
	*targetRole = recreated

	if err := s.provider.GrantRole(ctx, guildID, userID, recreated.ID); err != nil {
		return apperrors.NewStorageError("grant role", err)
	}

	return nil
}

func (s *Synchronizer) heldTierName(held []int64, byID map[int64]Role) string {
	for _, id := range held {
		role, ok := byID[id]
		if !ok || role.Name == s.defaultRole {
			continue
		}
		if _, isTier := s.ladder.TierByName(role.Name); isTier {
			return role.Name
		}
	}
	return ""
}
