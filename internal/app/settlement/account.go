package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/storage"
)

func (e *Engine) Account(ctx context.Context, accountID string) (entity.Account, error) {
	var account entity.Account
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		account, err = q.GetAccount(ctx, accountID)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return account, ErrUnknownAccount
	}
	return account, err
}

func (e *Engine) Orders(ctx context.Context, accountID string) ([]entity.Order, error) {
	var orders []entity.Order
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		orders, err = q.ListOrders(ctx, accountID)
		return err
	})
	return orders, err
}

func (e *Engine) PayoutAccount(ctx context.Context, accountID string) (entity.PayoutAccount, error) {
	var payout entity.PayoutAccount
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		payout, err = q.GetPayoutAccount(ctx, accountID)
		return err
	})
	return payout, err
}

func (e *Engine) Notifications(ctx context.Context, accountID string) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		notifications, err = q.ListNotifications(ctx, accountID)
		return err
	})
	return notifications, err
}

// Purchase buys p out of the account's pending-deposit pool and opens the
// matching order.
func (e *Engine) Purchase(ctx context.Context, accountID string, p entity.Product) (entity.Order, error) {
	if err := p.Validate(); err != nil {
		return entity.Order{}, &ValidationError{Field: "product", Reason: err.Error()}
	}
	var order entity.Order
	err := e.transact(ctx, "purchase", func(q storage.Querier) error {
		account, err := q.GetAccount(ctx, accountID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownAccount
		}
		if err != nil {
			return err
		}
		if account.PendingDeposit.LessThan(p.Price) {
			return &InsufficientFundsError{Requested: p.Price, Available: account.PendingDeposit}
		}
		account.PendingDeposit = account.PendingDeposit.Sub(p.Price)
		if err = q.UpdateAccountFunds(ctx, account); err != nil {
			return vanished("account", err)
		}

		now := e.now()
		o, err := entity.NewOrder(e.newID(), accountID, p, now)
		if err != nil {
			return err
		}
		if err = q.CreateOrder(ctx, o); err != nil {
			return vanished("account", err)
		}
		err = q.CreateNotification(ctx, entity.Notification{
			ID:        e.newID(),
			AccountID: accountID,
			Kind:      entity.NotifyPurchase,
			Amount:    p.Price,
			Status:    string(o.Kind),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return entity.Order{}, err
	}
	logger.Logger.Info().Str("account", accountID).Str("order", order.ID).Str("kind", string(order.Kind)).
		Str("price", order.Price.String()).Msg("order purchased")
	return order, nil
}

// RequestDeposit records a deposit awaiting operator verification.
func (e *Engine) RequestDeposit(ctx context.Context, accountID, rawAmount string) (entity.Deposit, error) {
	amount, err := parseMoney(rawAmount)
	if err != nil {
		return entity.Deposit{}, err
	}
	var deposit entity.Deposit
	err = e.transact(ctx, "request_deposit", func(q storage.Querier) error {
		d := entity.Deposit{
			ID:        e.newID(),
			AccountID: accountID,
			Amount:    amount,
			Status:    entity.DepositPending,
			CreatedAt: e.now(),
		}
		if err := q.CreateDeposit(ctx, d); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUnknownAccount
			}
			return err
		}
		deposit = d
		return nil
	})
	return deposit, err
}

// VerifyDeposit credits a pending deposit to the account's pending-deposit
// pool and lifetime deposited.
func (e *Engine) VerifyDeposit(ctx context.Context, depositID string) (entity.Deposit, error) {
	var deposit entity.Deposit
	err := e.transact(ctx, "verify_deposit", func(q storage.Querier) error {
		d, err := q.GetDeposit(ctx, depositID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownDeposit
		}
		if err != nil {
			return err
		}
		if d.Status != entity.DepositPending {
			return &ValidationError{Field: "status", Reason: "deposit is already " + string(d.Status)}
		}
		account, err := q.GetAccount(ctx, d.AccountID)
		if err != nil {
			return vanished("account", err)
		}

		now := e.now()
		d.Status = entity.DepositVerified
		d.VerifiedAt = &now
		if err = q.UpdateDeposit(ctx, d); err != nil {
			return vanished("deposit", err)
		}
		account.PendingDeposit = account.PendingDeposit.Add(d.Amount)
		account.LifetimeDeposited = account.LifetimeDeposited.Add(d.Amount)
		if err = q.UpdateAccountFunds(ctx, account); err != nil {
			return vanished("account", err)
		}
		err = q.CreateNotification(ctx, entity.Notification{
			ID:        e.newID(),
			AccountID: d.AccountID,
			Kind:      entity.NotifyDepositVerified,
			Amount:    d.Amount,
			Status:    string(entity.DepositVerified),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		deposit = d
		return nil
	})
	return deposit, err
}

// GrantLockedBonus sets the account's locked bonus to the global grant. It
// succeeds once per account.
func (e *Engine) GrantLockedBonus(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var granted decimal.Decimal
	err := e.transact(ctx, "grant_bonus", func(q storage.Querier) error {
		settings, err := q.GetSettings(ctx)
		if err != nil {
			return err
		}
		if err = q.SetLockedBonus(ctx, accountID, settings.BonusGrant); err != nil {
			return err
		}
		granted = settings.BonusGrant
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrAlreadySet):
		return decimal.Zero, ErrBonusAlreadyGranted
	case errors.Is(err, storage.ErrNotFound):
		return decimal.Zero, ErrUnknownAccount
	case err != nil:
		return decimal.Zero, err
	}
	logger.Logger.Info().Str("account", accountID).Str("bonus", granted.String()).Msg("locked bonus granted")
	return granted, nil
}

// LinkPayoutAccount sets the account's live payout destination. Requests
// already submitted keep the destination they were created with.
func (e *Engine) LinkPayoutAccount(ctx context.Context, accountID string, dest entity.PayoutDestination) (entity.PayoutAccount, error) {
	if err := validDestination(dest); err != nil {
		return entity.PayoutAccount{}, err
	}
	var payout entity.PayoutAccount
	err := e.transact(ctx, "link_payout", func(q storage.Querier) error {
		p := entity.PayoutAccount{AccountID: accountID, Destination: dest, UpdatedAt: e.now()}
		if err := q.UpsertPayoutAccount(ctx, p); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return entity.PayoutAccount{}, ErrUnknownAccount
	}
	return payout, err
}
