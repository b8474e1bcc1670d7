package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/storage"
)

var ErrOnboardingRequired = errors.New("settlement: a verified deposit is required before withdrawing")
var ErrIntegrity = errors.New("settlement: referenced record disappeared during the transaction")
var ErrUnknownAccount = errors.New("settlement: unknown account")
var ErrUnknownRequest = errors.New("settlement: unknown withdrawal request")
var ErrUnknownDeposit = errors.New("settlement: unknown deposit")
var ErrBonusAlreadyGranted = errors.New("settlement: locked bonus already granted")
var ErrSecretAlreadySet = errors.New("settlement: withdrawal secret already set")

// ValidationError reports bad input or a request outside the configured
// policy. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settlement: invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports a secret mismatch. The caller may try again;
// there is no attempt limit.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "settlement: not authorized: " + e.Reason
}

// InsufficientFundsError carries the ceiling the request was measured against.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("settlement: requested %s exceeds available %s", e.Requested, e.Available)
}

// FrequencyRestrictionError reports that a recent request still occupies the
// frequency window.
type FrequencyRestrictionError struct {
	LastRequestAt time.Time
	NextAllowedAt time.Time
	Wait          time.Duration
}

func (e *FrequencyRestrictionError) Error() string {
	return fmt.Sprintf("settlement: previous request at %s, next allowed at %s",
		e.LastRequestAt.Format(time.RFC3339), e.NextAllowedAt.Format(time.RFC3339))
}

// ConflictError is returned once every retry of a transaction lost to a
// concurrent writer. No record was changed.
type ConflictError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("settlement: %s conflicted %d times: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) Retryable() bool {
	return true
}

// vanished turns a not-found inside a transaction into ErrIntegrity.
func vanished(what string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrIntegrity, what)
	}
	return err
}

// refusalReason labels validation outcomes for metrics.
func refusalReason(err error) string {
	var (
		validation   *ValidationError
		auth         *AuthorizationError
		insufficient *InsufficientFundsError
		frequency    *FrequencyRestrictionError
		conflict     *ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return "validation_" + validation.Field
	case errors.As(err, &auth):
		return "authorization"
	case errors.As(err, &insufficient):
		return "insufficient_funds"
	case errors.As(err, &frequency):
		return "frequency"
	case errors.Is(err, ErrOnboardingRequired):
		return "onboarding"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	}
	return "internal"
}
