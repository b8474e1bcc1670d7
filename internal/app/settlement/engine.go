// Package settlement holds the weekend settlement engine: redeemable order
// balances, referral income, the legality audit, and withdrawal submission
// and verification.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/metrics"
	"github.com/devkekops/weekender/internal/app/storage"
)

// Zone is the fixed offset every calendar and time-of-day rule is evaluated
// in, whatever the host timezone.
var Zone = time.FixedZone("UTC+3", 3*60*60)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
)

type Engine struct {
	repo        storage.Repository
	now         func() time.Time
	newID       func() string
	metrics     *metrics.Settlement
	maxAttempts int
	baseDelay   time.Duration
	secretCost  int
}

type Option func(*Engine)

// WithClock sets the function used to read wall-clock time.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.now = clock }
}

func WithIDs(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithMetrics(m *metrics.Settlement) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRetry bounds conflict retries. Delays double after each attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			e.baseDelay = baseDelay
		}
	}
}

// WithSecretCost sets the bcrypt cost used for withdrawal secrets.
func WithSecretCost(cost int) Option {
	return func(e *Engine) { e.secretCost = cost }
}

func NewEngine(repo storage.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		now:         time.Now,
		newID:       uuid.NewString,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		secretCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// transact runs fn as one transaction, repeating it from scratch while the
// store reports a conflict. fn must not leak state out of a failed attempt.
func (e *Engine) transact(ctx context.Context, op string, fn func(q storage.Querier) error) error {
	delay := e.baseDelay
	for attempt := 1; ; attempt++ {
		err := e.repo.InTx(ctx, fn)
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		if attempt >= e.maxAttempts {
			e.metrics.RecordConflict(op, false)
			return &ConflictError{Operation: op, Attempts: attempt, Err: err}
		}
		e.metrics.RecordConflict(op, true)
		logger.Logger.Debug().Str("operation", op).Int("attempt", attempt).Dur("backoff", delay).Msg("transaction conflict, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
