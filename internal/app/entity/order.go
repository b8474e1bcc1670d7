package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// seeders derive the opening redeemable balance of an order from its
// product. The kind is looked up once, when the order is created.
var seeders = map[OrderKind]func(Product) decimal.Decimal{
	// principal plus the accrual for the whole waiting period, released at once
	OrderWeekend: func(p Product) decimal.Decimal {
		return p.Price.Add(p.AccrualRate.Mul(decimal.NewFromInt(int64(p.WaitingDays))))
	},
	// principal only; daily income is credited to the account elsewhere
	OrderStandard: func(p Product) decimal.Decimal {
		return p.Price
	},
}

// Validate checks a product can back an order.
func (p Product) Validate() error {
	if _, ok := seeders[p.Kind]; !ok {
		return fmt.Errorf("unknown order kind %q", p.Kind)
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	if p.AccrualRate.IsNegative() {
		return fmt.Errorf("accrual rate must be non-negative")
	}
	if p.WaitingDays < 0 {
		return fmt.Errorf("waiting days must be non-negative")
	}
	return nil
}

// NewOrder builds the order created by purchasing p.
func NewOrder(id, accountID string, p Product, purchasedAt time.Time) (Order, error) {
	if err := p.Validate(); err != nil {
		return Order{}, err
	}
	return Order{
		ID:          id,
		AccountID:   accountID,
		ProductID:   p.ID,
		Kind:        p.Kind,
		Price:       p.Price,
		AccrualRate: p.AccrualRate,
		WaitingDays: p.WaitingDays,
		PurchasedAt: purchasedAt,
		Balance:     seeders[p.Kind](p),
	}, nil
}
