package settlement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/storage"
)

const day = 24 * time.Hour

type OrderEligibility struct {
	Order      entity.Order `json:"order"`
	DaysPassed int          `json:"days_passed"`
	DaysLeft   int          `json:"days_left"`
	Eligible   bool         `json:"eligible"`
	UnlocksAt  time.Time    `json:"unlocks_at"`
}

// Eligibility is a point-in-time view of what an account can redeem. It is
// derived from the clock and must not be cached.
type Eligibility struct {
	Orders        []OrderEligibility `json:"orders"`
	EligibleTotal decimal.Decimal    `json:"eligible_total"`
	LockedBonus   decimal.Decimal    `json:"locked_bonus"`
	EvaluatedAt   time.Time          `json:"evaluated_at"`
}

// Withdrawable is the ceiling a withdrawal is checked against.
func (e Eligibility) Withdrawable() decimal.Decimal {
	return e.EligibleTotal.Add(e.LockedBonus)
}

// EligibleOrders returns the redeemable orders oldest purchase first.
func (e Eligibility) EligibleOrders() []OrderEligibility {
	var eligible []OrderEligibility
	for _, o := range e.Orders {
		if o.Eligible {
			eligible = append(eligible, o)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Order.PurchasedAt.Before(eligible[j].Order.PurchasedAt)
	})
	return eligible
}

// daysPassed is floor((now - from) / 24h).
func daysPassed(from, now time.Time) int {
	d := now.Sub(from)
	n := d / day
	if d < 0 && d%day != 0 {
		n--
	}
	return int(n)
}

// Evaluate computes eligibility for orders at now.
func Evaluate(orders []entity.Order, lockedBonus decimal.Decimal, now time.Time) Eligibility {
	result := Eligibility{
		Orders:        make([]OrderEligibility, 0, len(orders)),
		EligibleTotal: decimal.Zero,
		LockedBonus:   lockedBonus,
		EvaluatedAt:   now,
	}
	for _, o := range orders {
		passed := daysPassed(o.PurchasedAt, now)
		left := o.WaitingDays - passed
		eligible := left <= 0 && o.Balance.IsPositive()
		result.Orders = append(result.Orders, OrderEligibility{
			Order:      o,
			DaysPassed: passed,
			DaysLeft:   left,
			Eligible:   eligible,
			UnlocksAt:  o.PurchasedAt.Add(time.Duration(o.WaitingDays) * day),
		})
		if eligible {
			result.EligibleTotal = result.EligibleTotal.Add(o.Balance)
		}
	}
	return result
}

func loadEligibility(ctx context.Context, q storage.Querier, account entity.Account, now time.Time) (Eligibility, error) {
	orders, err := q.ListOrders(ctx, account.ID)
	if err != nil {
		return Eligibility{}, err
	}
	return Evaluate(orders, account.Bonus(), now), nil
}

// Eligibility reads the account's orders and evaluates them against the
// current time.
func (e *Engine) Eligibility(ctx context.Context, accountID string) (Eligibility, error) {
	var result Eligibility
	err := e.repo.View(ctx, func(q storage.Querier) error {
		account, err := q.GetAccount(ctx, accountID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownAccount
		}
		if err != nil {
			return err
		}
		result, err = loadEligibility(ctx, q, account, e.now())
		return err
	})
	return result, err
}

// Deduction is one order's share of a settlement.
type Deduction struct {
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

// settleFIFO takes amount from orders in the given order until it is covered.
// The uncovered remainder is returned alongside the deductions.
func settleFIFO(orders []OrderEligibility, amount decimal.Decimal) ([]Deduction, decimal.Decimal) {
	var deductions []Deduction
	rest := amount
	for _, o := range orders {
		if !rest.IsPositive() {
			break
		}
		take := decimal.Min(o.Order.Balance, rest)
		if !take.IsPositive() {
			continue
		}
		rest = rest.Sub(take)
		deductions = append(deductions, Deduction{
			OrderID:   o.Order.ID,
			Amount:    take,
			Remaining: o.Order.Balance.Sub(take),
		})
	}
	return deductions, rest
}
