// Package engine orchestrates the accrual pipeline: raw events come in from
// the gateway, counters and XP are updated through the ledger, and the
// side effects (tier roles, achievements, notifications) fan out from here.
// Side effects are independent: a failing role sync never blocks a coin
// credit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkade-labs/guildxp/internal/achievement"
	"github.com/arkade-labs/guildxp/internal/domain"
	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/guildconfig"
	"github.com/arkade-labs/guildxp/internal/ledger"
	"github.com/arkade-labs/guildxp/internal/notify"
	"github.com/arkade-labs/guildxp/internal/progression"
	"github.com/arkade-labs/guildxp/internal/repository"
	"github.com/arkade-labs/guildxp/internal/rolesync"
	"github.com/arkade-labs/guildxp/pkg/config"
	"github.com/arkade-labs/guildxp/pkg/metrics"
)

// Cooldowns is the Redis slice the engine uses for reputation gating.
type Cooldowns interface {
	SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// GuildConfigs resolves per-guild feature toggles.
type GuildConfigs interface {
	Get(ctx context.Context, guildID int64) guildconfig.Config
}

// Engine is the activity accrual pipeline for one guild.
type Engine struct {
	cfg     config.ActivityConfig
	guildID int64

	ledger     *ledger.Ledger
	ladder     progression.Ladder
	sync       *rolesync.Synchronizer
	evaluator  *achievement.Evaluator
	achRepo    repository.AchievementRepository
	provider   rolesync.RoleProvider
	social     repository.SocialRepository
	guilds     GuildConfigs
	cooldowns  Cooldowns
	notifier   notify.Notifier
	errHandler *apperrors.Handler
	log        *slog.Logger
}

// Params collects the engine's dependencies.
type Params struct {
	Config          config.ActivityConfig
	GuildID         int64
	Ledger          *ledger.Ledger
	AchievementRepo repository.AchievementRepository
	SocialRepo      repository.SocialRepository
	Provider        rolesync.RoleProvider
	Guilds          GuildConfigs
	Cooldowns       Cooldowns
	Notifier        notify.Notifier
	ErrHandler      *apperrors.Handler
	Log             *slog.Logger
}

// New wires the engine. The tier synchronizer and achievement evaluator are
// built here because their callbacks loop back into the engine: an
// achievement's XP reward can cause a level-up, which needs another role
// sync.
func New(p Params) *Engine {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	tiers := make([]progression.Tier, 0, len(p.Config.Ladder))
	for _, t := range p.Config.Ladder {
		tiers = append(tiers, progression.Tier{Level: t.Level, Name: t.Name, Color: t.Color})
	}

	e := &Engine{
		cfg:        p.Config,
		guildID:    p.GuildID,
		ledger:     p.Ledger,
		ladder:     progression.NewLadder(tiers),
		achRepo:    p.AchievementRepo,
		provider:   p.Provider,
		social:     p.SocialRepo,
		guilds:     p.Guilds,
		notifier:   p.Notifier,
		cooldowns:  p.Cooldowns,
		errHandler: p.ErrHandler,
		log:        log,
	}

	e.sync = rolesync.New(p.Provider, e.ladder, p.Config.DefaultRole, e.onTierChanged, log)
	e.evaluator = achievement.NewEvaluator(p.AchievementRepo, p.Ledger, e.onAchievementGranted, log)

	return e
}

// Start registers the achievement definitions. Must run before events flow.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.evaluator.RegisterDefinitions(ctx); err != nil {
		return fmt.Errorf("register achievement definitions: %w", err)
	}
	return nil
}

// RecordMessage processes one message event: counter, XP, coins, then the
// idempotent side-effect fan-out.
func (e *Engine) RecordMessage(ctx context.Context, userID int64) {
	start := time.Now()
	defer func() { metrics.RecordActivityEvent("message", time.Since(start)) }()

	guildCfg := e.guilds.Get(ctx, e.guildID)

	messages := e.ledger.IncrementMessages(ctx, userID)
	_, newLevel := e.ledger.AddXP(ctx, userID, int64(e.cfg.MessageXP), "message")

	if guildCfg.EconomyEnabled {
		e.ledger.AddCoins(ctx, userID, int64(e.cfg.MessageCoins))
	}

	e.syncRoles(ctx, userID, newLevel)

	if guildCfg.AchievementsEnabled && messages > 0 {
		e.evaluator.Evaluate(ctx, userID, achievement.TriggerMessage, messages)
		e.evaluator.Evaluate(ctx, userID, achievement.TriggerLevel, int64(newLevel))
	}
}

// RecordVoiceMinutes processes a whole-minute voice credit from the tracker
// or reconciler. Coins accrue one per interval of whole minutes.
func (e *Engine) RecordVoiceMinutes(ctx context.Context, userID int64, minutes int64) {
	if minutes <= 0 {
		return
	}

	start := time.Now()
	defer func() { metrics.RecordActivityEvent("voice", time.Since(start)) }()

	guildCfg := e.guilds.Get(ctx, e.guildID)

	total := e.ledger.IncrementVoiceMinutes(ctx, userID, minutes)
	_, newLevel := e.ledger.AddXP(ctx, userID, minutes*int64(e.cfg.VoiceXPPerMinute), "voice")

	if guildCfg.EconomyEnabled {
		if coins := minutes / int64(e.cfg.VoiceCoinsInterval); coins > 0 {
			e.ledger.AddCoins(ctx, userID, coins)
		}
	}

	e.syncRoles(ctx, userID, newLevel)

	if guildCfg.AchievementsEnabled && total > 0 {
		e.evaluator.Evaluate(ctx, userID, achievement.TriggerVoice, total)
		e.evaluator.Evaluate(ctx, userID, achievement.TriggerLevel, int64(newLevel))
	}
}

// LevelInfo returns the user's level, XP and progress toward the next level.
func (e *Engine) LevelInfo(ctx context.Context, userID int64) progression.LevelInfo {
	record := e.ledger.Progression(ctx, userID)
	return progression.InfoForXP(record.XP)
}

// Profile bundles the numbers shown on a user card.
type Profile struct {
	Stats        domain.UserStats
	Level        progression.LevelInfo
	Wallet       domain.Wallet
	Reputation   int
	TierName     string
	Achievements []domain.AchievementGrant
}

// GetProfile assembles a user profile from the ledgers.
func (e *Engine) GetProfile(ctx context.Context, userID int64) Profile {
	record := e.ledger.Progression(ctx, userID)
	info := progression.InfoForXP(record.XP)

	rep, err := e.social.GetReputation(ctx, userID)
	if err != nil {
		rep = 0
	}

	var tierName string
	if tier, ok := e.ladder.TierForLevel(info.Level); ok {
		tierName = tier.Name
	}

	grants, err := e.achRepo.ListGrants(ctx, userID)
	if err != nil {
		grants = nil
	}

	return Profile{
		Stats:        e.ledger.Stats(ctx, userID),
		Level:        info,
		Wallet:       e.ledger.Wallet(ctx, userID),
		Reputation:   rep,
		TierName:     tierName,
		Achievements: grants,
	}
}

func (e *Engine) syncRoles(ctx context.Context, userID int64, level int) {
	if _, err := e.sync.SyncTier(ctx, e.guildID, userID, level); err != nil {
		e.handleErr(ctx, err)
	}
}

// onTierChanged relays a successful tier grant to the notifier when the
// guild opted in. At-least-once: a crash between the grant and the send
// re-delivers on the next sync that changes roles.
func (e *Engine) onTierChanged(ctx context.Context, guildID, userID int64, oldTier, newTier string) {
	if !e.guilds.Get(ctx, guildID).NotifyTierChanges {
		return
	}

	record := e.ledger.Progression(ctx, userID)
	event := notify.NewTierChangeEvent(guildID, userID, oldTier, newTier, record.Level, record.XP)
	if err := e.notifier.TierChanged(ctx, event); err != nil {
		e.handleErr(ctx, err)
	}
}

// onAchievementGranted runs after an award's rewards are applied. An XP
// reward that crossed a threshold needs its own role sync and may unlock a
// level achievement in turn.
func (e *Engine) onAchievementGranted(ctx context.Context, userID int64, def achievement.Definition, leveledUp bool, newLevel int) {
	if !leveledUp {
		return
	}

	e.syncRoles(ctx, userID, newLevel)
	e.evaluator.Evaluate(ctx, userID, achievement.TriggerLevel, int64(newLevel))
}

func (e *Engine) handleErr(ctx context.Context, err error) {
	if e.errHandler != nil {
		e.errHandler.Handle(ctx, err)
		return
	}

	e.log.Warn("side effect failed", slog.Any("error", err))
}
