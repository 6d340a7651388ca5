package achievement

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkade-labs/guildxp/internal/domain"
	"github.com/arkade-labs/guildxp/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAchievementRepo models the unique constraint on (user, achievement)
// in memory.
type fakeAchievementRepo struct {
	nextID      int64
	granted     map[[2]int64]bool
	failInsert  bool
	insertCalls int
}

func newFakeAchievementRepo() *fakeAchievementRepo {
	return &fakeAchievementRepo{granted: make(map[[2]int64]bool)}
}

func (f *fakeAchievementRepo) UpsertDefinition(_ context.Context, _ domain.AchievementDefinition) (int64, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAchievementRepo) DefinitionByName(_ context.Context, _ string) (domain.AchievementDefinition, bool, error) {
	return domain.AchievementDefinition{}, false, nil
}

func (f *fakeAchievementRepo) InsertGrant(_ context.Context, userID, achievementID int64) (bool, error) {
	f.insertCalls++
	if f.failInsert {
		return false, assert.AnError
	}

	key := [2]int64{userID, achievementID}
	if f.granted[key] {
		return false, nil
	}
	f.granted[key] = true
	return true, nil
}

func (f *fakeAchievementRepo) ListGrants(_ context.Context, _ int64) ([]domain.AchievementGrant, error) {
	return nil, nil
}

// fakeEconomy records wallet mutations issued through the ledger.
type fakeEconomy struct {
	credited int64
	clamped  int64
}

func (f *fakeEconomy) AddCoins(_ context.Context, _ int64, amount int64) error {
	f.credited += amount
	return nil
}

func (f *fakeEconomy) RemoveCoins(context.Context, int64, int64) (bool, error) {
	return true, nil
}

func (f *fakeEconomy) DebitClamped(_ context.Context, _ int64, amount int64) error {
	f.clamped += amount
	return nil
}

func (f *fakeEconomy) GetWallet(_ context.Context, userID int64) (domain.Wallet, error) {
	return domain.Wallet{UserID: userID}, nil
}

func (f *fakeEconomy) TopByBalance(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type fakeActivity struct{}

func (fakeActivity) IncrementMessages(_ context.Context, _ int64) (int64, error) { return 0, nil }
func (fakeActivity) IncrementVoiceMinutes(_ context.Context, _ int64, _ int64) (int64, error) {
	return 0, nil
}
func (fakeActivity) GetStats(_ context.Context, userID int64) (domain.UserStats, error) {
	return domain.UserStats{UserID: userID}, nil
}
func (fakeActivity) TopByMessages(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}
func (fakeActivity) TopByVoice(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type fakeProgression struct {
	leveledUp bool
	newLevel  int
	awarded   int64
}

func (f *fakeProgression) AddXP(_ context.Context, _ int64, delta int64) (bool, int, error) {
	f.awarded += delta
	return f.leveledUp, f.newLevel, nil
}

func (f *fakeProgression) Get(_ context.Context, userID int64) (domain.Progression, error) {
	return domain.Progression{UserID: userID}, nil
}

func (f *fakeProgression) TopByLevel(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type evaluatorFixture struct {
	evaluator *Evaluator
	repo      *fakeAchievementRepo
	economy   *fakeEconomy
	progress  *fakeProgression
}

func newFixture(t *testing.T, onGranted GrantedFunc) *evaluatorFixture {
	t.Helper()

	repo := newFakeAchievementRepo()
	economy := &fakeEconomy{}
	progress := &fakeProgression{}
	l := ledger.New(fakeActivity{}, progress, economy, testLogger())

	e := NewEvaluator(repo, l, onGranted, testLogger())
	require.NoError(t, e.RegisterDefinitions(context.Background()))

	return &evaluatorFixture{evaluator: e, repo: repo, economy: economy, progress: progress}
}

func TestEvaluator_GrantsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	// Message 100 crosses the threshold: the insert wins and rewards land.
	f.evaluator.Evaluate(ctx, 7, TriggerMessage, 100)

	assert.Equal(t, int64(50), f.progress.awarded)
	assert.Equal(t, int64(25), f.economy.credited)

	// Message 101 re-checks the same predicate: the insert loses, no reward.
	f.evaluator.Evaluate(ctx, 7, TriggerMessage, 101)

	assert.Equal(t, int64(50), f.progress.awarded)
	assert.Equal(t, int64(25), f.economy.credited)
	assert.Equal(t, 2, f.repo.insertCalls)
}

func TestEvaluator_BelowThresholdDoesNothing(t *testing.T) {
	f := newFixture(t, nil)

	f.evaluator.Evaluate(context.Background(), 7, TriggerMessage, 99)

	assert.Zero(t, f.repo.insertCalls)
}

func TestEvaluator_WrongTriggerIsIgnored(t *testing.T) {
	f := newFixture(t, nil)

	// 100 voice minutes meets the chat_100 threshold numerically but the
	// predicate is bound to message events.
	f.evaluator.Evaluate(context.Background(), 7, TriggerVoice, 100)

	assert.Zero(t, f.repo.insertCalls)
}

func TestEvaluator_HigherMilestoneGrantsLowerOnesToo(t *testing.T) {
	f := newFixture(t, nil)

	// A user crossing 1000 messages in one evaluation holds both chat
	// milestones afterwards.
	f.evaluator.Evaluate(context.Background(), 7, TriggerMessage, 1000)

	assert.Equal(t, int64(50+250), f.progress.awarded)
	assert.Equal(t, int64(25+100), f.economy.credited)
}

func TestEvaluator_PenaltyIsClampedDebit(t *testing.T) {
	f := newFixture(t, nil)

	f.evaluator.Evaluate(context.Background(), 7, TriggerWarning, 1)

	assert.Equal(t, int64(50), f.economy.clamped)
	assert.Zero(t, f.economy.credited)
}

func TestEvaluator_RewardLevelUpReachesCallback(t *testing.T) {
	var cbLeveledUp bool
	var cbLevel int
	f := newFixture(t, func(_ context.Context, _ int64, _ Definition, leveledUp bool, newLevel int) {
		cbLeveledUp = leveledUp
		cbLevel = newLevel
	})
	f.progress.leveledUp = true
	f.progress.newLevel = 2

	f.evaluator.Evaluate(context.Background(), 7, TriggerMessage, 100)

	assert.True(t, cbLeveledUp)
	assert.Equal(t, 2, cbLevel)
}

func TestEvaluator_StorageFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.failInsert = true

	f.evaluator.Evaluate(context.Background(), 7, TriggerMessage, 100)

	assert.Zero(t, f.economy.credited)
	assert.Zero(t, f.progress.awarded)
}
