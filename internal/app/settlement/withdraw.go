package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/storage"
)

type WithdrawInput struct {
	AccountID string
	Amount    string
	Secret    string
	// Confirm repeats Secret when the account has no secret yet.
	Confirm string
}

// checked is what validation read; execution works from it.
type checked struct {
	account     entity.Account
	payout      entity.PayoutAccount
	eligibility Eligibility
	amount      decimal.Decimal
}

// check applies the submission rules in order and stops at the first
// failure. It runs once before the security gate and again inside the
// settling transaction.
func check(ctx context.Context, q storage.Querier, accountID, rawAmount string, now time.Time) (checked, error) {
	var c checked
	account, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return c, err
	}
	settings, err := q.GetSettings(ctx)
	if err != nil {
		return c, err
	}
	policy := settings.Withdrawal

	payout, err := q.GetPayoutAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && payout.Destination.IsZero()) {
		return c, &ValidationError{Field: "payout_account", Reason: "link a payout account first"}
	}
	if err != nil {
		return c, err
	}

	amount, err := parseAmount(rawAmount, policy)
	if err != nil {
		return c, err
	}

	if err = checkWindow(policy, now); err != nil {
		return c, err
	}

	eligibility, err := loadEligibility(ctx, q, account, now)
	if err != nil {
		return c, err
	}
	if amount.GreaterThan(eligibility.Withdrawable()) {
		return c, &InsufficientFundsError{Requested: amount, Available: eligibility.Withdrawable()}
	}

	last, err := q.LatestWithdrawalSince(ctx, accountID, frequencyCutoff(policy, now))
	if err == nil {
		return c, frequencyError(policy, last.CreatedAt, now)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return c, err
	}

	onboarded, err := q.HasVerifiedDeposit(ctx, accountID)
	if err != nil {
		return c, err
	}
	if !onboarded {
		return c, ErrOnboardingRequired
	}

	return checked{account: account, payout: payout, eligibility: eligibility, amount: amount}, nil
}

// Withdraw validates and submits a withdrawal request. On success the
// amount has been taken from the account's eligible orders, oldest first,
// and a pending request holding a copy of the payout destination exists.
func (e *Engine) Withdraw(ctx context.Context, in WithdrawInput) (entity.WithdrawalRequest, error) {
	started := time.Now()
	req, err := e.withdraw(ctx, in)
	if err != nil {
		reason := refusalReason(err)
		e.metrics.RecordRefused(reason)
		logger.Logger.Info().Str("account", in.AccountID).Str("reason", reason).Err(err).Msg("withdrawal refused")
		return entity.WithdrawalRequest{}, err
	}
	e.metrics.RecordSubmitted(time.Since(started))
	logger.Logger.Info().Str("account", req.AccountID).Str("request", req.ID).
		Str("amount", req.Amount.String()).Msg("withdrawal submitted")
	return req, nil
}

func (e *Engine) withdraw(ctx context.Context, in WithdrawInput) (entity.WithdrawalRequest, error) {
	var pre checked
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		pre, err = check(ctx, q, in.AccountID, in.Amount, e.now())
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return entity.WithdrawalRequest{}, ErrUnknownAccount
	}
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}

	newHash, err := e.gate(pre.account, in.Secret, in.Confirm)
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}

	var req entity.WithdrawalRequest
	err = e.transact(ctx, "withdraw", func(q storage.Querier) error {
		r, err := e.settle(ctx, q, in, newHash)
		if err != nil {
			return err
		}
		req = r
		return nil
	})
	return req, err
}

// settle re-validates against fresh reads and applies the withdrawal.
// newHash, when set, is the first-use secret to store with it.
func (e *Engine) settle(ctx context.Context, q storage.Querier, in WithdrawInput, newHash string) (entity.WithdrawalRequest, error) {
	now := e.now()
	c, err := check(ctx, q, in.AccountID, in.Amount, now)
	if err != nil {
		return entity.WithdrawalRequest{}, vanished("account", err)
	}
	if err := storeSecret(ctx, q, c.account, in.Secret, newHash); err != nil {
		return entity.WithdrawalRequest{}, err
	}

	deductions, rest := settleFIFO(c.eligibility.EligibleOrders(), c.amount)
	for _, d := range deductions {
		if err := q.UpdateOrderBalance(ctx, d.OrderID, d.Remaining); err != nil {
			return entity.WithdrawalRequest{}, vanished("order "+d.OrderID, err)
		}
	}
	if rest.IsPositive() {
		// only the locked bonus can cover what the orders could not; check
		// already bounded the amount by orders plus bonus
		account := c.account
		account.LockedBonus = decimal.NullDecimal{Decimal: account.Bonus().Sub(rest), Valid: true}
		if err := q.UpdateAccountFunds(ctx, account); err != nil {
			return entity.WithdrawalRequest{}, vanished("account", err)
		}
	}

	fee, net := Fee(c.amount)
	req := entity.WithdrawalRequest{
		ID:        e.newID(),
		AccountID: in.AccountID,
		Amount:    c.amount,
		Fee:       fee,
		Net:       net,
		Payout:    c.payout.Destination,
		Status:    entity.WithdrawalPending,
		CreatedAt: now,
	}
	if err := q.CreateWithdrawal(ctx, req); err != nil {
		return entity.WithdrawalRequest{}, vanished("account", err)
	}
	err = q.CreateNotification(ctx, entity.Notification{
		ID:        e.newID(),
		AccountID: in.AccountID,
		Kind:      entity.NotifyWithdrawalSubmitted,
		Amount:    c.amount,
		Status:    string(entity.WithdrawalPending),
		CreatedAt: now,
	})
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}
	return req, nil
}

func (e *Engine) Withdrawals(ctx context.Context, accountID string) ([]entity.WithdrawalRequest, error) {
	var withdrawals []entity.WithdrawalRequest
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		withdrawals, err = q.ListWithdrawals(ctx, accountID)
		return err
	})
	return withdrawals, err
}
