package voice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// creditRecorder collects credits issued by the tracker.
type creditRecorder struct {
	mu      sync.Mutex
	credits map[int64]int64
}

func newCreditRecorder() *creditRecorder {
	return &creditRecorder{credits: make(map[int64]int64)}
}

func (c *creditRecorder) fn(_ context.Context, userID int64, minutes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credits[userID] += minutes
}

func (c *creditRecorder) total(userID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credits[userID]
}

// fakeClock lets tests advance session time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker() (*Tracker, *creditRecorder, *fakeClock) {
	rec := newCreditRecorder()
	clock := newFakeClock()
	tracker := NewTracker(rec.fn, testLogger())
	tracker.now = clock.Now
	return tracker, rec, clock
}

func TestTracker_LeaveCreditsWholeMinutes(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(3*time.Minute + 45*time.Second)
	tracker.HandleLeave(ctx, 1)

	assert.Equal(t, int64(3), rec.total(1))
	assert.Zero(t, tracker.OpenSessions())
}

func TestTracker_SubMinuteStayCreditsNothing(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(59 * time.Second)
	tracker.HandleLeave(ctx, 1)

	assert.Zero(t, rec.total(1))
	assert.Zero(t, tracker.OpenSessions())
}

func TestTracker_LeaveWithoutJoinIsNoop(t *testing.T) {
	ctx := context.Background()
	tracker, rec, _ := newTestTracker()

	tracker.HandleLeave(ctx, 1)

	assert.Zero(t, rec.total(1))
}

func TestTracker_ChannelSwitchFlushesAndReopens(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(2*time.Minute + 30*time.Second)
	tracker.HandleJoin(ctx, 1, 200)

	assert.Equal(t, int64(2), rec.total(1))
	assert.Equal(t, 1, tracker.OpenSessions())

	clock.Advance(1 * time.Minute)
	tracker.HandleLeave(ctx, 1)

	assert.Equal(t, int64(3), rec.total(1))
}

func TestTracker_DuplicateJoinSameChannelIgnored(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(90 * time.Second)
	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(90 * time.Second)
	tracker.HandleLeave(ctx, 1)

	// 3m total from the original start, not reset by the duplicate join.
	assert.Equal(t, int64(3), rec.total(1))
}

func TestTracker_ReconcileRebasesStart(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(5*time.Minute + 20*time.Second)

	credits := tracker.Reconcile(ctx, nil)

	require.Equal(t, int64(5), credits[1])
	assert.Equal(t, int64(5), rec.total(1))
	assert.Equal(t, 1, tracker.OpenSessions())

	// The 20s remainder survives the rebase and completes a minute later.
	clock.Advance(40 * time.Second)
	credits = tracker.Reconcile(ctx, nil)
	assert.Equal(t, int64(1), credits[1])
	assert.Equal(t, int64(6), rec.total(1))
}

func TestTracker_ReconcileThenLeaveDropsRemainder(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	// Join, reconcile after 5m, leave at 5m30s: 5 minutes total, the 30s
	// remainder is dropped at leave time.
	tracker.HandleJoin(ctx, 1, 100)
	clock.Advance(5 * time.Minute)
	tracker.Reconcile(ctx, nil)
	clock.Advance(30 * time.Second)
	tracker.HandleLeave(ctx, 1)

	assert.Equal(t, int64(5), rec.total(1))
}

func TestTracker_ReconcileSkipsFilteredUsers(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	tracker.HandleJoin(ctx, 2, 100)
	clock.Advance(4 * time.Minute)

	credits := tracker.Reconcile(ctx, func(userID int64) bool { return userID == 1 })

	assert.Equal(t, int64(4), credits[1])
	assert.Zero(t, rec.total(2))
	assert.Equal(t, 2, tracker.OpenSessions())

	// The skipped session kept its original start, so a later full flush
	// still sees the whole stay.
	tracker.HandleLeave(ctx, 2)
	assert.Equal(t, int64(4), rec.total(2))
}

func TestTracker_FlushAll(t *testing.T) {
	ctx := context.Background()
	tracker, rec, clock := newTestTracker()

	tracker.HandleJoin(ctx, 1, 100)
	tracker.HandleJoin(ctx, 2, 200)
	clock.Advance(2 * time.Minute)

	tracker.FlushAll(ctx)

	assert.Equal(t, int64(2), rec.total(1))
	assert.Equal(t, int64(2), rec.total(2))
	assert.Zero(t, tracker.OpenSessions())
}
