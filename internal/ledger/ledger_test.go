package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arkade-labs/guildxp/internal/domain"
	apperrors "github.com/arkade-labs/guildxp/internal/errors"
)

var errStorageFailure = errors.New("storage error")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockActivityRepo struct {
	mock.Mock
}

func (m *mockActivityRepo) IncrementMessages(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockActivityRepo) IncrementVoiceMinutes(ctx context.Context, userID int64, minutes int64) (int64, error) {
	args := m.Called(ctx, userID, minutes)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockActivityRepo) GetStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.UserStats), args.Error(1)
}

func (m *mockActivityRepo) TopByMessages(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.LeaderboardEntry)
	return entries, args.Error(1)
}

func (m *mockActivityRepo) TopByVoice(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.LeaderboardEntry)
	return entries, args.Error(1)
}

type mockProgressionRepo struct {
	mock.Mock
}

func (m *mockProgressionRepo) AddXP(ctx context.Context, userID int64, delta int64) (bool, int, error) {
	args := m.Called(ctx, userID, delta)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockProgressionRepo) Get(ctx context.Context, userID int64) (domain.Progression, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Progression), args.Error(1)
}

func (m *mockProgressionRepo) TopByLevel(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.LeaderboardEntry)
	return entries, args.Error(1)
}

type mockEconomyRepo struct {
	mock.Mock
}

func (m *mockEconomyRepo) AddCoins(ctx context.Context, userID int64, amount int64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *mockEconomyRepo) RemoveCoins(ctx context.Context, userID int64, amount int64) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *mockEconomyRepo) DebitClamped(ctx context.Context, userID int64, amount int64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *mockEconomyRepo) GetWallet(ctx context.Context, userID int64) (domain.Wallet, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Wallet), args.Error(1)
}

func (m *mockEconomyRepo) TopByBalance(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.LeaderboardEntry)
	return entries, args.Error(1)
}

func newTestLedger() (*Ledger, *mockActivityRepo, *mockProgressionRepo, *mockEconomyRepo) {
	activity := &mockActivityRepo{}
	progress := &mockProgressionRepo{}
	economy := &mockEconomyRepo{}
	return New(activity, progress, economy, testLogger()), activity, progress, economy
}

func TestLedger_IncrementMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("returns new total", func(t *testing.T) {
		l, activity, _, _ := newTestLedger()
		activity.On("IncrementMessages", mock.Anything, int64(7)).Return(int64(100), nil).Once()

		total := l.IncrementMessages(ctx, 7)

		assert.Equal(t, int64(100), total)
		activity.AssertExpectations(t)
	})

	t.Run("storage failure degrades to noop", func(t *testing.T) {
		l, activity, _, _ := newTestLedger()
		activity.On("IncrementMessages", mock.Anything, int64(7)).Return(int64(0), errStorageFailure).Once()

		total := l.IncrementMessages(ctx, 7)

		assert.Zero(t, total)
		activity.AssertExpectations(t)
	})
}

func TestLedger_IncrementVoiceMinutes(t *testing.T) {
	ctx := context.Background()

	t.Run("skips non-positive amounts", func(t *testing.T) {
		l, activity, _, _ := newTestLedger()

		assert.Zero(t, l.IncrementVoiceMinutes(ctx, 7, 0))
		assert.Zero(t, l.IncrementVoiceMinutes(ctx, 7, -5))
		activity.AssertNotCalled(t, "IncrementVoiceMinutes", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("credits whole minutes", func(t *testing.T) {
		l, activity, _, _ := newTestLedger()
		activity.On("IncrementVoiceMinutes", mock.Anything, int64(7), int64(5)).Return(int64(605), nil).Once()

		assert.Equal(t, int64(605), l.IncrementVoiceMinutes(ctx, 7, 5))
		activity.AssertExpectations(t)
	})
}

func TestLedger_AddXP(t *testing.T) {
	ctx := context.Background()

	t.Run("reports level crossing", func(t *testing.T) {
		l, _, progress, _ := newTestLedger()
		progress.On("AddXP", mock.Anything, int64(7), int64(5)).Return(true, 1, nil).Once()

		leveledUp, newLevel := l.AddXP(ctx, 7, 5, "message")

		assert.True(t, leveledUp)
		assert.Equal(t, 1, newLevel)
		progress.AssertExpectations(t)
	})

	t.Run("storage failure reports no crossing", func(t *testing.T) {
		l, _, progress, _ := newTestLedger()
		progress.On("AddXP", mock.Anything, int64(7), int64(5)).Return(false, 0, errStorageFailure).Once()

		leveledUp, newLevel := l.AddXP(ctx, 7, 5, "message")

		assert.False(t, leveledUp)
		assert.Zero(t, newLevel)
	})

	t.Run("ignores non-positive delta", func(t *testing.T) {
		l, _, progress, _ := newTestLedger()

		leveledUp, _ := l.AddXP(ctx, 7, 0, "message")

		assert.False(t, leveledUp)
		progress.AssertNotCalled(t, "AddXP", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLedger_RemoveCoins(t *testing.T) {
	ctx := context.Background()

	t.Run("sufficient balance", func(t *testing.T) {
		l, _, _, economy := newTestLedger()
		economy.On("RemoveCoins", mock.Anything, int64(7), int64(50)).Return(true, nil).Once()

		require.NoError(t, l.RemoveCoins(ctx, 7, 50))
		economy.AssertExpectations(t)
	})

	t.Run("underflow is rejected", func(t *testing.T) {
		l, _, _, economy := newTestLedger()
		economy.On("RemoveCoins", mock.Anything, int64(7), int64(50)).Return(false, nil).Once()

		err := l.RemoveCoins(ctx, 7, 50)

		require.Error(t, err)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindEconomyUnderflow, appErr.Kind)
	})

	t.Run("storage failure is surfaced", func(t *testing.T) {
		l, _, _, economy := newTestLedger()
		economy.On("RemoveCoins", mock.Anything, int64(7), int64(50)).Return(false, errStorageFailure).Once()

		err := l.RemoveCoins(ctx, 7, 50)

		require.Error(t, err)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindStorageUnavailable, appErr.Kind)
	})
}

func TestLedger_DebitClamped(t *testing.T) {
	ctx := context.Background()

	l, _, _, economy := newTestLedger()
	economy.On("DebitClamped", mock.Anything, int64(7), int64(25)).Return(nil).Once()

	l.DebitClamped(ctx, 7, 25)
	l.DebitClamped(ctx, 7, 0)

	economy.AssertExpectations(t)
}

func TestLedger_ReadsDegradeToZero(t *testing.T) {
	ctx := context.Background()

	l, activity, progress, economy := newTestLedger()
	activity.On("GetStats", mock.Anything, int64(7)).Return(domain.UserStats{}, errStorageFailure).Once()
	progress.On("Get", mock.Anything, int64(7)).Return(domain.Progression{}, errStorageFailure).Once()
	economy.On("GetWallet", mock.Anything, int64(7)).Return(domain.Wallet{}, errStorageFailure).Once()

	assert.Equal(t, int64(7), l.Stats(ctx, 7).UserID)
	assert.Equal(t, int64(7), l.Progression(ctx, 7).UserID)
	assert.Equal(t, int64(7), l.Wallet(ctx, 7).UserID)
}
