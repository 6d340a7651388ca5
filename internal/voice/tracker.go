// Package voice tracks open voice sessions in memory and converts elapsed
// time into whole-minute credits. Sessions live only in process memory; a
// restart loses at most the minutes accrued since the last reconciler pass.
package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CreditFunc receives whole voice minutes for durable accrual.
type CreditFunc func(ctx context.Context, userID int64, minutes int64)

// Session is one open voice presence.
type Session struct {
	ChannelID int64
	StartedAt time.Time
}

// Tracker holds the open sessions. Gateway handlers run on their own
// goroutines, so all map access is under the mutex; the durable credit call
// happens after the lock is released.
type Tracker struct {
	mu       sync.Mutex
	sessions map[int64]Session

	credit CreditFunc
	log    *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker that reports whole minutes through credit.
func NewTracker(credit CreditFunc, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}

	return &Tracker{
		sessions: make(map[int64]Session),
		credit:   credit,
		log:      log,
		now:      time.Now,
	}
}

// HandleJoin opens a session. A join for a user already tracked in the same
// channel is a duplicate gateway event and is ignored; a different channel is
// treated as a switch.
func (t *Tracker) HandleJoin(ctx context.Context, userID, channelID int64) {
	t.mu.Lock()

	current, ok := t.sessions[userID]
	if ok && current.ChannelID == channelID {
		t.mu.Unlock()
		return
	}

	var minutes int64
	if ok {
		minutes = t.closeLocked(userID, current)
	}
	t.sessions[userID] = Session{ChannelID: channelID, StartedAt: t.now()}

	t.mu.Unlock()

	if minutes > 0 {
		t.credit(ctx, userID, minutes)
	}

	t.log.Debug("voice session opened",
		slog.Int64("user_id", userID),
		slog.Int64("channel_id", channelID),
	)
}

// HandleLeave closes the session and credits the elapsed whole minutes. The
// sub-minute remainder is dropped. A leave for an untracked user is a noop:
// the join was either missed or already flushed.
func (t *Tracker) HandleLeave(ctx context.Context, userID int64) {
	t.mu.Lock()

	current, ok := t.sessions[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	minutes := t.closeLocked(userID, current)

	t.mu.Unlock()

	if minutes > 0 {
		t.credit(ctx, userID, minutes)
	}

	t.log.Debug("voice session closed",
		slog.Int64("user_id", userID),
		slog.Int64("minutes", minutes),
	)
}

// Reconcile credits the whole minutes accrued so far by every open session
// that passes the eligible filter and rebases each flushed session's start
// forward by exactly the credited amount, so the sub-minute remainder keeps
// accruing into the next pass. Sessions filtered out are left untouched. A
// nil filter means every session is eligible. Returns the per-user credits
// that were applied.
func (t *Tracker) Reconcile(ctx context.Context, eligible func(userID int64) bool) map[int64]int64 {
	t.mu.Lock()

	credits := make(map[int64]int64)
	for userID, session := range t.sessions {
		if eligible != nil && !eligible(userID) {
			continue
		}

		minutes := int64(t.now().Sub(session.StartedAt) / time.Minute)
		if minutes <= 0 {
			continue
		}

		session.StartedAt = session.StartedAt.Add(time.Duration(minutes) * time.Minute)
		t.sessions[userID] = session
		credits[userID] = minutes
	}

	t.mu.Unlock()

	for userID, minutes := range credits {
		t.credit(ctx, userID, minutes)
	}

	return credits
}

// FlushAll closes every open session, crediting elapsed whole minutes. Called
// on shutdown before the storage layer goes away.
func (t *Tracker) FlushAll(ctx context.Context) {
	t.mu.Lock()

	credits := make(map[int64]int64)
	for userID, session := range t.sessions {
		if minutes := t.closeLocked(userID, session); minutes > 0 {
			credits[userID] = minutes
		}
	}

	t.mu.Unlock()

	for userID, minutes := range credits {
		t.credit(ctx, userID, minutes)
	}

	t.log.Info("voice sessions flushed", slog.Int("count", len(credits)))
}

// OpenSessions returns the number of currently tracked sessions.
func (t *Tracker) OpenSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) closeLocked(userID int64, session Session) int64 {
	delete(t.sessions, userID)
	return int64(t.now().Sub(session.StartedAt) / time.Minute)
}
