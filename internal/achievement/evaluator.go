package achievement

import (
	"context"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/ledger"
	"github.com/arkade-labs/guildxp/internal/repository"
	"github.com/arkade-labs/guildxp/pkg/metrics"
)

// GrantedFunc is called after a successful award so the caller can run
// follow-up effects, such as a role sync when the XP reward caused a
// level-up.
type GrantedFunc func(ctx context.Context, userID int64, def Definition, leveledUp bool, newLevel int)

// Evaluator checks trigger predicates and awards achievements. The award
// itself is gated by the storage layer's unique constraint, so concurrent
// evaluations of the same milestone grant exactly once.
type Evaluator struct {
	repo      repository.AchievementRepository
	ledger    *ledger.Ledger
	defs      []Definition
	ids       map[string]int64
	onGranted GrantedFunc
	log       *slog.Logger
}

// NewEvaluator creates an Evaluator over the built-in definition set.
func NewEvaluator(repo repository.AchievementRepository, l *ledger.Ledger, onGranted GrantedFunc, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}

	return &Evaluator{
		repo:      repo,
		ledger:    l,
		defs:      BuiltIn(),
		ids:       make(map[string]int64),
		onGranted: onGranted,
		log:       log,
	}
}

// RegisterDefinitions upserts the definition set into storage and caches the
// assigned IDs. Must run before the first Evaluate call.
func (e *Evaluator) RegisterDefinitions(ctx context.Context) error {
	for _, def := range e.defs {
		id, err := e.repo.UpsertDefinition(ctx, def.AchievementDefinition)
		if err != nil {
			return err
		}
		e.ids[def.Name] = id
	}

	e.log.Info("achievement definitions registered", slog.Int("count", len(e.defs)))
	return nil
}

// Evaluate checks every definition bound to the trigger against the counter
// value just produced by a mutation, awarding any newly crossed milestones.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, trigger Trigger, value int64) {
	for _, def := range e.defs {
		if def.Trigger != trigger || !def.Met(value) {
			continue
		}

		e.checkAndAward(ctx, userID, def)
	}
}

// checkAndAward awards one achievement. The insert is the authoritative
// exactly-once gate: a false return means the user already has it, which is
// the common case on every re-check past the threshold.
func (e *Evaluator) checkAndAward(ctx context.Context, userID int64, def Definition) bool {
	id, ok := e.ids[def.Name]
	if !ok {
		e.log.Error("achievement definition not registered", slog.String("achievement", def.Name))
		return false
	}

	inserted, err := e.repo.InsertGrant(ctx, userID, id)
	if err != nil {
		e.log.Warn("achievement grant dropped, storage unavailable",
			slog.String("achievement", def.Name),
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return false
	}
	if !inserted {
		return false
	}

	metrics.RecordAchievementGranted(def.Name)
	e.log.Info("achievement granted",
		slog.String("achievement", def.Name),
		slog.Int64("user_id", userID),
	)

	var (
		leveledUp bool
		newLevel  int
	)
	if def.XPReward > 0 {
		leveledUp, newLevel = e.ledger.AddXP(ctx, userID, int64(def.XPReward), "achievement")
	}

	switch {
	case def.CoinReward > 0:
		e.ledger.AddCoins(ctx, userID, def.CoinReward)
	case def.CoinReward < 0:
		// Penalties always land, clamped at a zero balance instead of
		// being rejected for insufficient funds.
		e.ledger.DebitClamped(ctx, userID, -def.CoinReward)
	}

	if e.onGranted != nil {
		e.onGranted(ctx, userID, def, leveledUp, newLevel)
	}

	return true
}
