package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/storage"
)

// teamIncomeShare is applied to raw team income in the audit. It is not
// configurable.
var teamIncomeShare = decimal.RequireFromString("0.9")

// AuditReport compares what an account has claimed with what it could have
// earned. It is informational and never blocks a withdrawal.
type AuditReport struct {
	AccountID          string          `json:"account_id"`
	ProductIncome      decimal.Decimal `json:"product_income"`
	RawTeamIncome      decimal.Decimal `json:"raw_team_income"`
	TeamIncome90       decimal.Decimal `json:"team_income_90"`
	Allowance          decimal.Decimal `json:"allowance"`
	Balance            decimal.Decimal `json:"balance"`
	LifetimeWithdrawn  decimal.Decimal `json:"lifetime_withdrawn"`
	Liability          decimal.Decimal `json:"liability"`
	IsLegal            bool            `json:"is_legal"`
	MaxLegalWithdrawal decimal.Decimal `json:"max_legal_withdrawal"`
	// ProductIncomeUncapped marks that order income keeps accruing past the
	// order's waiting period in this figure.
	ProductIncomeUncapped bool      `json:"product_income_uncapped"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// productIncome is Σ accrualRate × max(0, days since purchase).
func productIncome(orders []entity.Order, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		days := daysPassed(o.PurchasedAt, now)
		if days <= 0 {
			continue
		}
		total = total.Add(o.AccrualRate.Mul(decimal.NewFromInt(int64(days))))
	}
	return total
}

// BuildAudit computes the report from already loaded records.
func BuildAudit(account entity.Account, orders []entity.Order, team TeamIncome, now time.Time) AuditReport {
	product := productIncome(orders, now)
	team90 := team.Raw.Mul(teamIncomeShare)
	allowance := product.Add(team90)
	liability := account.Balance.Add(account.LifetimeWithdrawn)
	return AuditReport{
		AccountID:             account.ID,
		ProductIncome:         product,
		RawTeamIncome:         team.Raw,
		TeamIncome90:          team90,
		Allowance:             allowance,
		Balance:               account.Balance,
		LifetimeWithdrawn:     account.LifetimeWithdrawn,
		Liability:             liability,
		IsLegal:               liability.LessThanOrEqual(allowance),
		MaxLegalWithdrawal:    decimal.Max(decimal.Zero, allowance.Sub(account.LifetimeWithdrawn)),
		ProductIncomeUncapped: true,
		GeneratedAt:           now,
	}
}

// Audit produces the legality report for an account.
func (e *Engine) Audit(ctx context.Context, accountID string) (AuditReport, error) {
	var report AuditReport
	err := e.repo.View(ctx, func(q storage.Querier) error {
		account, err := q.GetAccount(ctx, accountID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownAccount
		}
		if err != nil {
			return err
		}
		orders, err := q.ListOrders(ctx, accountID)
		if err != nil {
			return err
		}
		settings, err := q.GetSettings(ctx)
		if err != nil {
			return err
		}
		team, err := teamIncome(ctx, q, settings.Rates, accountID)
		if err != nil {
			return err
		}
		report = BuildAudit(account, orders, team, e.now())
		return nil
	})
	return report, err
}
