package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/storage"
)

var hundred = decimal.NewFromInt(100)

// Register creates an account. When referrerID is set the new account's
// upline is the referrer followed by the referrer's own first three levels.
func (e *Engine) Register(ctx context.Context, referrerID string) (entity.Account, error) {
	var account entity.Account
	err := e.transact(ctx, "register", func(q storage.Querier) error {
		a := entity.Account{
			ID:        e.newID(),
			CreatedAt: e.now(),
		}
		if referrerID != "" {
			referrer, err := q.GetAccount(ctx, referrerID)
			if errors.Is(err, storage.ErrNotFound) {
				return &ValidationError{Field: "referrer", Reason: "no such account"}
			}
			if err != nil {
				return err
			}
			a.UplineA = referrer.ID
			a.UplineB = referrer.UplineA
			a.UplineC = referrer.UplineB
			a.UplineD = referrer.UplineC
		}
		if err := q.CreateAccount(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return entity.Account{}, err
	}
	logger.Logger.Info().Str("account", account.ID).Str("referrer", referrerID).Msg("account registered")
	return account, nil
}

type LevelIncome struct {
	Level     entity.Level    `json:"level"`
	Deposited decimal.Decimal `json:"deposited"`
	Rate      decimal.Decimal `json:"rate"`
	Income    decimal.Decimal `json:"income"`
}

// TeamIncome is the referral entitlement of an account before any haircut.
type TeamIncome struct {
	Levels [4]LevelIncome  `json:"levels"`
	Raw    decimal.Decimal `json:"raw"`
}

func teamIncome(ctx context.Context, q storage.Querier, rates entity.RateTable, accountID string) (TeamIncome, error) {
	income := TeamIncome{Raw: decimal.Zero}
	for i, level := range entity.Levels {
		deposited, err := q.SumDepositedByUpline(ctx, level, accountID)
		if err != nil {
			return TeamIncome{}, fmt.Errorf("sum level %s: %w", level, err)
		}
		rate := rates.Rate(level)
		share := deposited.Mul(rate).Div(hundred)
		income.Levels[i] = LevelIncome{Level: level, Deposited: deposited, Rate: rate, Income: share}
		income.Raw = income.Raw.Add(share)
	}
	return income, nil
}

// TeamIncome sums, per upline level, the lifetime deposits of every account
// that has accountID at that level, weighted by the configured rate.
func (e *Engine) TeamIncome(ctx context.Context, accountID string) (TeamIncome, error) {
	var income TeamIncome
	err := e.repo.View(ctx, func(q storage.Querier) error {
		if _, err := q.GetAccount(ctx, accountID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUnknownAccount
			}
			return err
		}
		settings, err := q.GetSettings(ctx)
		if err != nil {
			return err
		}
		income, err = teamIncome(ctx, q, settings.Rates, accountID)
		return err
	})
	return income, err
}
