// Package errors defines the typed failure kinds of the accrual engine and
// the handling policy attached to each of them.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies a failure into the engine's handling taxonomy.
type Kind string

const (
	// KindStorageUnavailable marks counter and progression writes that must
	// degrade to a no-op rather than surface to the event handler.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindInsufficientRank marks a role mutation aborted because the acting
	// principal sits at or below the target role in the hierarchy.
	KindInsufficientRank Kind = "insufficient_rank"
	// KindRoleNotFound marks a missing tier role; the synchronizer self-heals
	// by creating it and retrying once.
	KindRoleNotFound Kind = "role_not_found"
	// KindEconomyUnderflow marks a rejected debit that would push a balance
	// below zero.
	KindEconomyUnderflow Kind = "economy_underflow"
	// KindDuplicateGrant marks an achievement that was already awarded. This
	// is a defined outcome, not a fault.
	KindDuplicateGrant Kind = "duplicate_grant"
	// KindCooldownActive marks an operation rejected by a per-user cooldown.
	KindCooldownActive Kind = "cooldown_active"
)

type AppError struct {
	Kind      Kind
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// Is makes errors.Is match any AppError of the same kind.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}

	return e.Kind == other.Kind
}

func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Kind:      KindStorageUnavailable,
		Message:   fmt.Sprintf("storage unavailable during %s", op),
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewInsufficientRankError(roleName string) *AppError {
	return &AppError{
		Kind:      KindInsufficientRank,
		Message:   fmt.Sprintf("actor rank is not above role %q", roleName),
		Severity:  SeverityMedium,
		Retryable: false,
	}
}

func NewRoleNotFoundError(roleName string) *AppError {
	return &AppError{
		Kind:      KindRoleNotFound,
		Message:   fmt.Sprintf("role %q does not exist", roleName),
		Severity:  SeverityLow,
		Retryable: true,
	}
}

func NewUnderflowError(userID int64, amount int64) *AppError {
	return &AppError{
		Kind:      KindEconomyUnderflow,
		Message:   fmt.Sprintf("debit of %d rejected for user %d: insufficient balance", amount, userID),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewDuplicateGrantError(achievement string) *AppError {
	return &AppError{
		Kind:      KindDuplicateGrant,
		Message:   fmt.Sprintf("achievement %q already granted", achievement),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewCooldownError(op string, remainingSeconds int64) *AppError {
	return &AppError{
		Kind:      KindCooldownActive,
		Message:   fmt.Sprintf("%s on cooldown for another %d seconds", op, remainingSeconds),
		Severity:  SeverityLow,
		Retryable: false,
	}
}
