package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByKind(t *testing.T) {
	err := NewUnderflowError(42, 100)
	wrapped := fmt.Errorf("purchase failed: %w", err)

	assert.True(t, stderrors.Is(wrapped, &AppError{Kind: KindEconomyUnderflow}))
	assert.False(t, stderrors.Is(wrapped, &AppError{Kind: KindStorageUnavailable}))
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "storage errors retry", err: NewStorageError("add_xp", stderrors.New("conn refused")), expected: true},
		{name: "rank failures never retry", err: NewInsufficientRankError("Legend"), expected: false},
		{name: "missing role retries once", err: NewRoleNotFoundError("Novice"), expected: true},
		{name: "plain errors do not retry", err: stderrors.New("boom"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetryable(tc.err))
		})
	}
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := WithRetry(nil, 3, func() error {
		calls++
		return NewInsufficientRankError("Veteran")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesUpToLimit(t *testing.T) {
	calls := 0
	err := WithRetry(nil, 1, func() error {
		calls++
		return NewRoleNotFoundError("Novice")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := WithRetry(nil, 1, func() error {
		calls++
		if calls == 1 {
			return NewRoleNotFoundError("Novice")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
