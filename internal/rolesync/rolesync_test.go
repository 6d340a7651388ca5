package rolesync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/progression"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ListRoles(ctx context.Context, guildID int64) ([]Role, error) {
	args := m.Called(ctx, guildID)
	roles, _ := args.Get(0).([]Role)
	return roles, args.Error(1)
}

func (m *mockProvider) CreateRole(ctx context.Context, guildID int64, name string, color int) (Role, error) {
	args := m.Called(ctx, guildID, name, color)
	role, _ := args.Get(0).(Role)
	return role, args.Error(1)
}

func (m *mockProvider) MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error) {
	args := m.Called(ctx, guildID, userID)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *mockProvider) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *mockProvider) RevokeRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *mockProvider) ActorTopPosition(ctx context.Context, guildID int64) (int, error) {
	args := m.Called(ctx, guildID)
	return args.Int(0), args.Error(1)
}

var testLadder = progression.NewLadder([]progression.Tier{
	{Level: 5, Name: "Regular", Color: 0x00FF00},
	{Level: 10, Name: "Veteran", Color: 0x0000FF},
})

const (
	guildID = int64(900)
	userID  = int64(42)
)

var (
	newcomerRole = Role{ID: 1, Name: "Newcomer", Position: 1}
	regularRole  = Role{ID: 2, Name: "Regular", Position: 2}
	veteranRole  = Role{ID: 3, Name: "Veteran", Position: 3}
)

func allRoles() []Role {
	return []Role{newcomerRole, regularRole, veteranRole}
}

func newSync(provider *mockProvider, onChange TierChangedFunc) *Synchronizer {
	return New(provider, testLadder, "Newcomer", onChange, testLogger())
}

func TestSyncTier_BelowFirstThresholdIsNoop(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	changed, err := s.SyncTier(context.Background(), guildID, userID, 3)

	require.NoError(t, err)
	assert.False(t, changed)
	provider.AssertNotCalled(t, "ListRoles", mock.Anything, mock.Anything)
}

func TestSyncTier_GrantsTierAndRevokesDefault(t *testing.T) {
	provider := &mockProvider{}

	var gotOld, gotNew string
	s := newSync(provider, func(_ context.Context, _, _ int64, oldTier, newTier string) {
		gotOld, gotNew = oldTier, newTier
	})

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Once()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{newcomerRole.ID}, nil).Once()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(10, nil).Once()
	provider.On("RevokeRole", mock.Anything, guildID, userID, newcomerRole.ID).Return(nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, regularRole.ID).Return(nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 5)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, gotOld)
	assert.Equal(t, "Regular", gotNew)
	provider.AssertExpectations(t)
}

func TestSyncTier_Idempotent(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Twice()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{regularRole.ID}, nil).Twice()

	for range 2 {
		changed, err := s.SyncTier(context.Background(), guildID, userID, 7)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	provider.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "RevokeRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncTier_PromotionSwapsTierRoles(t *testing.T) {
	provider := &mockProvider{}

	var gotOld string
	s := newSync(provider, func(_ context.Context, _, _ int64, oldTier, _ string) {
		gotOld = oldTier
	})

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Once()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{regularRole.ID}, nil).Once()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(10, nil).Once()
	provider.On("RevokeRole", mock.Anything, guildID, userID, regularRole.ID).Return(nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, veteranRole.ID).Return(nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 10)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Regular", gotOld)
	provider.AssertExpectations(t)
}

func TestSyncTier_InsufficientRankAborts(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Once()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{newcomerRole.ID}, nil).Once()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(regularRole.Position, nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 5)

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindInsufficientRank, appErr.Kind)
	assert.False(t, changed)
	provider.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "RevokeRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncTier_ConvergesAfterRankFix(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Twice()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{newcomerRole.ID}, nil).Twice()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(1, nil).Once()

	_, err := s.SyncTier(context.Background(), guildID, userID, 5)
	require.Error(t, err)

	provider.On("ActorTopPosition", mock.Anything, guildID).Return(10, nil).Once()
	provider.On("RevokeRole", mock.Anything, guildID, userID, newcomerRole.ID).Return(nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, regularRole.ID).Return(nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 5)

	require.NoError(t, err)
	assert.True(t, changed)
	provider.AssertExpectations(t)
}

func TestSyncTier_CreatesMissingRole(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	created := Role{ID: 9, Name: "Veteran", Position: 3}

	provider.On("ListRoles", mock.Anything, guildID).Return([]Role{newcomerRole, regularRole}, nil).Once()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{regularRole.ID}, nil).Once()
	provider.On("CreateRole", mock.Anything, guildID, "Veteran", 0x0000FF).Return(created, nil).Once()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(10, nil).Once()
	provider.On("RevokeRole", mock.Anything, guildID, userID, regularRole.ID).Return(nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, created.ID).Return(nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 12)

	require.NoError(t, err)
	assert.True(t, changed)
	provider.AssertExpectations(t)
}

func TestSyncTier_GrantRetriesOnceAfterRecreate(t *testing.T) {
	provider := &mockProvider{}
	s := newSync(provider, nil)

	recreated := Role{ID: 20, Name: "Regular", Position: 2}

	provider.On("ListRoles", mock.Anything, guildID).Return(allRoles(), nil).Once()
	provider.On("MemberRoles", mock.Anything, guildID, userID).Return([]int64{}, nil).Once()
	provider.On("ActorTopPosition", mock.Anything, guildID).Return(10, nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, regularRole.ID).Return(errors.New("unknown role")).Once()
	provider.On("CreateRole", mock.Anything, guildID, "Regular", 0x00FF00).Return(recreated, nil).Once()
	provider.On("GrantRole", mock.Anything, guildID, userID, recreated.ID).Return(nil).Once()

	changed, err := s.SyncTier(context.Background(), guildID, userID, 6)

	require.NoError(t, err)
	assert.True(t, changed)
	provider.AssertExpectations(t)
}
