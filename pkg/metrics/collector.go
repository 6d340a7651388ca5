package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_events_total",
			Help: "Total number of processed activity events labeled by source",
		},
		[]string{"source"},
	)
	xpAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP credited labeled by source",
		},
		[]string{"source"},
	)
	levelUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of observed level-up transitions",
		},
	)
	roleSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_syncs_total",
			Help: "Total tier role synchronizations labeled by outcome",
		},
		[]string{"outcome"},
	)
	achievementsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_granted_total",
			Help: "Total achievements granted labeled by achievement name",
		},
		[]string{"achievement"},
	)
	coinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coins_total",
			Help: "Total coins moved through the economy labeled by direction",
		},
		[]string{"direction"},
	)
	storageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_storage_failures_total",
			Help: "Total ledger operations degraded to no-ops labeled by operation",
		},
		[]string{"operation"},
	)
	reconcilerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_reconciler_ticks_total",
			Help: "Total reconciler ticks labeled by outcome",
		},
		[]string{"outcome"},
	)
	openVoiceSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "open_voice_sessions",
			Help: "Current number of open voice sessions",
		},
	)
	eventDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "activity_event_duration_seconds",
			Help:    "Duration of activity event handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

// RecordActivityEvent counts one processed event and its handling duration.
func RecordActivityEvent(source string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}

	activityEventsTotal.WithLabelValues(source).Inc()
	eventDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordXPAwarded tracks credited XP by source.
func RecordXPAwarded(source string, amount int) {
	if amount <= 0 {
		return
	}
	if source == "" {
		source = "unknown"
	}

	xpAwardedTotal.WithLabelValues(source).Add(float64(amount))
}

// RecordLevelUp counts one observed level-up.
func RecordLevelUp() {
	levelUpsTotal.Inc()
}

// RecordRoleSync counts a tier synchronization outcome
// (changed, noop, insufficient_rank, error).
func RecordRoleSync(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}

	roleSyncsTotal.WithLabelValues(outcome).Inc()
}

// RecordAchievementGranted counts a first-time achievement grant.
func RecordAchievementGranted(name string) {
	if name == "" {
		name = "unknown"
	}

	achievementsGrantedTotal.WithLabelValues(name).Inc()
}

// RecordCoins tracks economy movement; direction is "credit" or "debit".
func RecordCoins(direction string, amount int64) {
	if amount < 0 {
		amount = -amount
	}

	coinsTotal.WithLabelValues(direction).Add(float64(amount))
}

// RecordStorageFailure counts a ledger operation degraded to a no-op.
func RecordStorageFailure(operation string) {
	if operation == "" {
		operation = "unknown"
	}

	storageFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordReconcilerTick counts a reconciler tick outcome (ok, skipped).
func RecordReconcilerTick(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}

	reconcilerTicksTotal.WithLabelValues(outcome).Inc()
}

// SessionCounter reports how many voice sessions are currently open.
type SessionCounter interface {
	OpenSessions() int
}

// SessionCollector periodically publishes the open voice session gauge.
type SessionCollector struct {
	tracker SessionCounter
}

// NewSessionCollector builds a collector bound to the voice tracker.
func NewSessionCollector(tracker SessionCounter) *SessionCollector {
	return &SessionCollector{tracker: tracker}
}

// Run polls the tracker every 10 seconds until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.tracker == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		openVoiceSessions.Set(float64(c.tracker.OpenSessions()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}
