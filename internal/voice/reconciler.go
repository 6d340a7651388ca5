package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arkade-labs/guildxp/pkg/metrics"
)

// PresenceChecker reports whether a user is currently in a voice channel.
// known is false when the gateway cache cannot answer, in which case the
// reconciler leaves the session alone rather than guess.
type PresenceChecker interface {
	InVoice(userID int64) (present bool, known bool)
}

// Reconciler periodically flushes open voice sessions so long stays accrue
// minutes incrementally instead of in one burst at leave time.
type Reconciler struct {
	tracker  *Tracker
	presence PresenceChecker
	interval time.Duration
	log      *slog.Logger

	running sync.Mutex
}

// NewReconciler creates a Reconciler over the tracker.
func NewReconciler(tracker *Tracker, presence PresenceChecker, interval time.Duration, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}

	return &Reconciler{
		tracker:  tracker,
		presence: presence,
		interval: interval,
		log:      log,
	}
}

// Run starts the reconcile loop until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("voice reconciler stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one reconcile pass. If a previous pass is still running, the
// tick is skipped: overlapping passes would double-credit the same minutes.
//
// Only sessions whose user is still verified present in some voice channel
// are flushed. A session whose user cannot be verified (or is verifiably
// gone, meaning its leave event was lost) is left untouched so a late or
// out-of-order leave event cannot double-count the same interval.
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.running.TryLock() {
		metrics.RecordReconcilerTick("skipped")
		r.log.Warn("voice reconcile tick skipped, previous pass still running")
		return
	}
	defer r.running.Unlock()

	credits := r.tracker.Reconcile(ctx, r.verifiedPresent)
	metrics.RecordReconcilerTick("ok")

	if len(credits) > 0 {
		var total int64
		for _, minutes := range credits {
			total += minutes
		}
		r.log.Info("voice sessions reconciled",
			slog.Int("sessions", len(credits)),
			slog.Int64("minutes", total),
		)
	}
}

func (r *Reconciler) verifiedPresent(userID int64) bool {
	if r.presence == nil {
		return true
	}

	present, known := r.presence.InVoice(userID)
	return known && present
}
