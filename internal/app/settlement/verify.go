package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/storage"
)

func loadPending(ctx context.Context, q storage.Querier, requestID string) (entity.WithdrawalRequest, error) {
	w, err := q.GetWithdrawal(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return w, ErrUnknownRequest
	}
	if err != nil {
		return w, err
	}
	if w.Status != entity.WithdrawalPending {
		return w, &ValidationError{Field: "status", Reason: "request is already " + string(w.Status)}
	}
	return w, nil
}

// Verify confirms a pending request. The account's lifetime withdrawn grows
// by the gross amount; order balances were already reduced at submission.
func (e *Engine) Verify(ctx context.Context, requestID string) (entity.WithdrawalRequest, error) {
	var result entity.WithdrawalRequest
	err := e.transact(ctx, "verify", func(q storage.Querier) error {
		w, err := loadPending(ctx, q, requestID)
		if err != nil {
			return err
		}
		account, err := q.GetAccount(ctx, w.AccountID)
		if err != nil {
			return vanished("account", err)
		}

		now := e.now()
		w.Status = entity.WithdrawalVerified
		w.VerifiedAt = &now
		if err = q.UpdateWithdrawal(ctx, w); err != nil {
			return vanished("request", err)
		}
		account.LifetimeWithdrawn = account.LifetimeWithdrawn.Add(w.Amount)
		if err = q.UpdateAccountFunds(ctx, account); err != nil {
			return vanished("account", err)
		}
		err = q.CreateNotification(ctx, entity.Notification{
			ID:        e.newID(),
			AccountID: w.AccountID,
			Kind:      entity.NotifyWithdrawalVerified,
			Amount:    w.Amount,
			Status:    string(entity.WithdrawalVerified),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}
	e.metrics.RecordVerification(string(entity.WithdrawalVerified))
	logger.Logger.Info().Str("request", result.ID).Str("account", result.AccountID).Msg("withdrawal verified")
	return result, nil
}

// Reject closes a pending request without paying it. Reserved order balances
// stay reduced and lifetime withdrawn is unchanged.
func (e *Engine) Reject(ctx context.Context, requestID string) (entity.WithdrawalRequest, error) {
	var result entity.WithdrawalRequest
	err := e.transact(ctx, "reject", func(q storage.Querier) error {
		w, err := loadPending(ctx, q, requestID)
		if err != nil {
			return err
		}
		w.Status = entity.WithdrawalRejected
		if err = q.UpdateWithdrawal(ctx, w); err != nil {
			return vanished("request", err)
		}
		err = q.CreateNotification(ctx, entity.Notification{
			ID:        e.newID(),
			AccountID: w.AccountID,
			Kind:      entity.NotifyWithdrawalRejected,
			Amount:    w.Amount,
			Status:    string(entity.WithdrawalRejected),
			CreatedAt: e.now(),
		})
		if err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}
	e.metrics.RecordVerification(string(entity.WithdrawalRejected))
	logger.Logger.Info().Str("request", result.ID).Str("account", result.AccountID).Msg("withdrawal rejected")
	return result, nil
}

func validDestination(d entity.PayoutDestination) error {
	switch {
	case strings.TrimSpace(d.Holder) == "":
		return &ValidationError{Field: "holder", Reason: "required"}
	case strings.TrimSpace(d.Method) == "":
		return &ValidationError{Field: "method", Reason: "required"}
	case strings.TrimSpace(d.Number) == "":
		return &ValidationError{Field: "number", Reason: "required"}
	}
	return nil
}

// CorrectPayout replaces the payout snapshot of a pending request. With
// syncAccount the account's live payout destination is updated as well.
func (e *Engine) CorrectPayout(ctx context.Context, requestID string, dest entity.PayoutDestination, syncAccount bool) (entity.WithdrawalRequest, error) {
	if err := validDestination(dest); err != nil {
		return entity.WithdrawalRequest{}, err
	}
	var result entity.WithdrawalRequest
	err := e.transact(ctx, "correct_payout", func(q storage.Querier) error {
		w, err := loadPending(ctx, q, requestID)
		if err != nil {
			return err
		}
		w.Payout = dest
		if err = q.UpdateWithdrawal(ctx, w); err != nil {
			return vanished("request", err)
		}
		if syncAccount {
			err = q.UpsertPayoutAccount(ctx, entity.PayoutAccount{
				AccountID:   w.AccountID,
				Destination: dest,
				UpdatedAt:   e.now(),
			})
			if err != nil {
				return vanished("account", err)
			}
		}
		result = w
		return nil
	})
	if err != nil {
		return entity.WithdrawalRequest{}, err
	}
	logger.Logger.Info().Str("request", result.ID).Bool("synced", syncAccount).Msg("payout snapshot corrected")
	return result, nil
}
