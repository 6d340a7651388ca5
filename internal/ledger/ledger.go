// Package ledger wraps the SQL repositories with the accrual contract: a
// storage outage never propagates to an event handler. Failed writes are
// logged, counted and dropped; failed reads return neutral values. Cumulative
// counters are monotonic, so a dropped increment costs one event, not
// correctness.
package ledger

import (
	"context"
	"log/slog"

	"github.com/arkade-labs/guildxp/internal/domain"
	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/repository"
	"github.com/arkade-labs/guildxp/pkg/metrics"
)

// Ledger is the single write path for activity counters, XP and coins.
type Ledger struct {
	activity    repository.ActivityRepository
	progression repository.ProgressionRepository
	economy     repository.EconomyRepository
	log         *slog.Logger
}

// New creates a Ledger over the given repositories.
func New(
	activity repository.ActivityRepository,
	progressionRepo repository.ProgressionRepository,
	economy repository.EconomyRepository,
	log *slog.Logger,
) *Ledger {
	return &Ledger{
		activity:    activity,
		progression: progressionRepo,
		economy:     economy,
		log:         log,
	}
}

// IncrementMessages bumps the message counter. On storage failure the event
// is dropped and the new total reads as zero.
func (l *Ledger) IncrementMessages(ctx context.Context, userID int64) int64 {
	total, err := l.activity.IncrementMessages(ctx, userID)
	if err != nil {
		l.absorb(ctx, "increment_messages", userID, err)
		return 0
	}

	return total
}

// IncrementVoiceMinutes credits whole voice minutes. On storage failure the
// credit is dropped and the new total reads as zero.
func (l *Ledger) IncrementVoiceMinutes(ctx context.Context, userID int64, minutes int64) int64 {
	if minutes <= 0 {
		return 0
	}

	total, err := l.activity.IncrementVoiceMinutes(ctx, userID, minutes)
	if err != nil {
		l.absorb(ctx, "increment_voice_minutes", userID, err)
		return 0
	}

	return total
}

// AddXP awards XP and reports whether the user crossed a level threshold and
// what the new level is. On storage failure the award is dropped and no
// level change is reported.
func (l *Ledger) AddXP(ctx context.Context, userID int64, delta int64, source string) (leveledUp bool, newLevel int) {
	if delta <= 0 {
		return false, 0
	}

	leveledUp, newLevel, err := l.progression.AddXP(ctx, userID, delta)
	if err != nil {
		l.absorb(ctx, "add_xp", userID, err)
		return false, 0
	}

	metrics.RecordXPAwarded(source, int(delta))
	if leveledUp {
		metrics.RecordLevelUp()
	}

	return leveledUp, newLevel
}

// AddCoins credits the wallet. On storage failure the credit is dropped.
func (l *Ledger) AddCoins(ctx context.Context, userID int64, amount int64) {
	if amount <= 0 {
		return
	}

	if err := l.economy.AddCoins(ctx, userID, amount); err != nil {
		l.absorb(ctx, "add_coins", userID, err)
		return
	}

	metrics.RecordCoins("credit", amount)
}

// RemoveCoins debits the wallet. An insufficient balance returns an
// underflow error and leaves the wallet untouched; unlike accrual writes,
// storage failures here are surfaced so the caller can refuse the spend.
func (l *Ledger) RemoveCoins(ctx context.Context, userID int64, amount int64) error {
	ok, err := l.economy.RemoveCoins(ctx, userID, amount)
	if err != nil {
		metrics.RecordStorageFailure("remove_coins")
		return apperrors.NewStorageError("remove coins", err)
	}

	if !ok {
		return apperrors.NewUnderflowError(userID, amount)
	}

	metrics.RecordCoins("debit", amount)
	return nil
}

// DebitClamped debits the wallet, stopping at zero. Used for penalties. On
// storage failure the penalty is dropped.
func (l *Ledger) DebitClamped(ctx context.Context, userID int64, amount int64) {
	if amount <= 0 {
		return
	}

	if err := l.economy.DebitClamped(ctx, userID, amount); err != nil {
		l.absorb(ctx, "debit_clamped", userID, err)
		return
	}

	metrics.RecordCoins("debit", amount)
}

// Stats returns the activity counters for a user, zeroes on failure.
func (l *Ledger) Stats(ctx context.Context, userID int64) domain.UserStats {
	stats, err := l.activity.GetStats(ctx, userID)
	if err != nil {
		l.absorb(ctx, "get_stats", userID, err)
		return domain.UserStats{UserID: userID}
	}

	return stats
}

// Progression returns the XP record for a user, zeroes on failure.
func (l *Ledger) Progression(ctx context.Context, userID int64) domain.Progression {
	record, err := l.progression.Get(ctx, userID)
	if err != nil {
		l.absorb(ctx, "get_progression", userID, err)
		return domain.Progression{UserID: userID}
	}

	return record
}

// Wallet returns the wallet for a user, zeroes on failure.
func (l *Ledger) Wallet(ctx context.Context, userID int64) domain.Wallet {
	wallet, err := l.economy.GetWallet(ctx, userID)
	if err != nil {
		l.absorb(ctx, "get_wallet", userID, err)
		return domain.Wallet{UserID: userID}
	}

	return wallet
}

func (l *Ledger) absorb(ctx context.Context, op string, userID int64, err error) {
	metrics.RecordStorageFailure(op)

	if l.log == nil {
		return
	}

	l.log.WarnContext(ctx, "ledger write dropped, storage unavailable",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
