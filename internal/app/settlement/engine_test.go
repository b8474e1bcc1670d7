package settlement

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/storage"
)

// Saturday, inside the default 10:00-18:00 window.
var saturdayNoon = time.Date(2024, 6, 15, 12, 0, 0, 0, Zone)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	repo   *storage.RepoMemory
	engine *Engine

	mu  sync.Mutex
	now time.Time
	seq int64
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:    t,
		ctx:  context.Background(),
		repo: storage.NewRepoMemory(entity.DefaultSettings()),
		now:  saturdayNoon,
	}
	f.engine = f.newEngine(f.repo)
	return f
}

func (f *fixture) newEngine(repo storage.Repository, opts ...Option) *Engine {
	base := []Option{
		WithClock(f.clock),
		WithIDs(func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&f.seq, 1)) }),
		WithSecretCost(bcrypt.MinCost),
		WithRetry(3, 0),
	}
	return NewEngine(repo, append(base, opts...)...)
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// readyAccount registers an account that passes every non-financial check:
// payout account linked, one verified deposit, secret 1234.
func (f *fixture) readyAccount() entity.Account {
	account, err := f.engine.Register(f.ctx, "")
	require.NoError(f.t, err)
	_, err = f.engine.LinkPayoutAccount(f.ctx, account.ID, entity.PayoutDestination{Holder: "Ann", Method: "bank", Number: "0001"})
	require.NoError(f.t, err)
	deposit, err := f.engine.RequestDeposit(f.ctx, account.ID, "5000")
	require.NoError(f.t, err)
	_, err = f.engine.VerifyDeposit(f.ctx, deposit.ID)
	require.NoError(f.t, err)
	require.NoError(f.t, f.engine.SetSecret(f.ctx, account.ID, "1234", "1234"))
	return account
}

func (f *fixture) addOrder(accountID, orderID string, purchasedAt time.Time, waitingDays int, balance int64) {
	err := f.repo.InTx(f.ctx, func(q storage.Querier) error {
		return q.CreateOrder(f.ctx, entity.Order{
			ID:          orderID,
			AccountID:   accountID,
			Kind:        entity.OrderWeekend,
			Price:       decimal.NewFromInt(balance),
			AccrualRate: decimal.NewFromInt(10),
			WaitingDays: waitingDays,
			PurchasedAt: purchasedAt,
			Balance:     decimal.NewFromInt(balance),
		})
	})
	require.NoError(f.t, err)
}

func (f *fixture) order(accountID, orderID string) entity.Order {
	orders, err := f.engine.Orders(f.ctx, accountID)
	require.NoError(f.t, err)
	for _, o := range orders {
		if o.ID == orderID {
			return o
		}
	}
	f.t.Fatalf("order %s not found", orderID)
	return entity.Order{}
}

func (f *fixture) updateSettings(fn func(s *entity.Settings)) {
	err := f.repo.InTx(f.ctx, func(q storage.Querier) error {
		s, err := q.GetSettings(f.ctx)
		if err != nil {
			return err
		}
		fn(&s)
		return q.PutSettings(f.ctx, s)
	})
	require.NoError(f.t, err)
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func withdraw(f *fixture, accountID, amount string) (entity.WithdrawalRequest, error) {
	return f.engine.Withdraw(f.ctx, WithdrawInput{AccountID: accountID, Amount: amount, Secret: "1234"})
}

func TestRegisterShiftsUpline(t *testing.T) {
	f := newFixture(t)
	chain := make([]entity.Account, 0, 6)
	referrer := ""
	for i := 0; i < 6; i++ {
		a, err := f.engine.Register(f.ctx, referrer)
		require.NoError(t, err)
		chain = append(chain, a)
		referrer = a.ID
	}
	last := chain[5]
	require.Equal(t, chain[4].ID, last.UplineA)
	require.Equal(t, chain[3].ID, last.UplineB)
	require.Equal(t, chain[2].ID, last.UplineC)
	require.Equal(t, chain[1].ID, last.UplineD)

	root := chain[0]
	require.Empty(t, root.UplineA)
	require.Equal(t, root.ID, chain[1].UplineA)
	require.Empty(t, chain[1].UplineB)

	_, err := f.engine.Register(f.ctx, "missing")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "referrer", validation.Field)
}

func TestTeamIncomeWeightsLevels(t *testing.T) {
	f := newFixture(t)
	root, err := f.engine.Register(f.ctx, "")
	require.NoError(t, err)

	deposit := func(accountID, amount string) {
		d, err := f.engine.RequestDeposit(f.ctx, accountID, amount)
		require.NoError(t, err)
		_, err = f.engine.VerifyDeposit(f.ctx, d.ID)
		require.NoError(t, err)
	}

	a, err := f.engine.Register(f.ctx, root.ID)
	require.NoError(t, err)
	deposit(a.ID, "1000")
	b, err := f.engine.Register(f.ctx, a.ID)
	require.NoError(t, err)
	deposit(b.ID, "1000")
	c, err := f.engine.Register(f.ctx, b.ID)
	require.NoError(t, err)
	deposit(c.ID, "1000")
	d, err := f.engine.Register(f.ctx, c.ID)
	require.NoError(t, err)
	deposit(d.ID, "1000")
	e, err := f.engine.Register(f.ctx, d.ID)
	require.NoError(t, err)
	deposit(e.ID, "1000")

	income, err := f.engine.TeamIncome(f.ctx, root.ID)
	require.NoError(t, err)
	requireDecimal(t, 120, income.Levels[0].Income)
	requireDecimal(t, 70, income.Levels[1].Income)
	requireDecimal(t, 40, income.Levels[2].Income)
	requireDecimal(t, 20, income.Levels[3].Income)
	requireDecimal(t, 250, income.Raw)

	f.updateSettings(func(s *entity.Settings) { s.Rates.A = decimal.NewFromInt(20) })
	income, err = f.engine.TeamIncome(f.ctx, root.ID)
	require.NoError(t, err)
	requireDecimal(t, 330, income.Raw)

	_, err = f.engine.TeamIncome(f.ctx, "ghost")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestPurchaseDeductsPendingDeposit(t *testing.T) {
	f := newFixture(t)
	account := f.readyAccount()
	product := entity.Product{ID: "wk-30", Kind: entity.OrderWeekend, Price: decimal.NewFromInt(1000), AccrualRate: decimal.NewFromInt(15), WaitingDays: 30}

	order, err := f.engine.Purchase(f.ctx, account.ID, product)
	require.NoError(t, err)
	requireDecimal(t, 1450, order.Balance)
	require.Equal(t, saturdayNoon, order.PurchasedAt)

	got, err := f.engine.Account(f.ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, 4000, got.PendingDeposit)

	product.Price = decimal.NewFromInt(4001)
	_, err = f.engine.Purchase(f.ctx, account.ID, product)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	requireDecimal(t, 4000, insufficient.Available)

	orders, err := f.engine.Orders(f.ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	_, err = f.engine.Purchase(f.ctx, account.ID, entity.Product{Kind: "gold", Price: decimal.NewFromInt(1)})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestVerifyDepositOnce(t *testing.T) {
	f := newFixture(t)
	account, err := f.engine.Register(f.ctx, "")
	require.NoError(t, err)

	_, err = f.engine.RequestDeposit(f.ctx, account.ID, "-5")
	require.Error(t, err)

	var validation *ValidationError
	for _, raw := range []string{"1e-2000000000", "1e2000000000", "0.005"} {
		_, err = f.engine.RequestDeposit(f.ctx, account.ID, raw)
		require.ErrorAs(t, err, &validation, raw)
	}
	d, err := f.engine.RequestDeposit(f.ctx, account.ID, "250.50")
	require.NoError(t, err)
	require.Equal(t, entity.DepositPending, d.Status)

	d, err = f.engine.VerifyDeposit(f.ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, entity.DepositVerified, d.Status)
	require.NotNil(t, d.VerifiedAt)

	_, err = f.engine.VerifyDeposit(f.ctx, d.ID)
	require.ErrorAs(t, err, &validation)

	got, err := f.engine.Account(f.ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.PendingDeposit.Equal(decimal.RequireFromString("250.50")))
	require.True(t, got.LifetimeDeposited.Equal(decimal.RequireFromString("250.50")))

	_, err = f.engine.VerifyDeposit(f.ctx, "nope")
	require.ErrorIs(t, err, ErrUnknownDeposit)
}

func TestGrantLockedBonusOnce(t *testing.T) {
	f := newFixture(t)
	f.updateSettings(func(s *entity.Settings) { s.BonusGrant = decimal.NewFromInt(150) })
	account, err := f.engine.Register(f.ctx, "")
	require.NoError(t, err)

	granted, err := f.engine.GrantLockedBonus(f.ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, 150, granted)

	f.updateSettings(func(s *entity.Settings) { s.BonusGrant = decimal.NewFromInt(999) })
	_, err = f.engine.GrantLockedBonus(f.ctx, account.ID)
	require.ErrorIs(t, err, ErrBonusAlreadyGranted)

	got, err := f.engine.Account(f.ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, 150, got.Bonus())

	_, err = f.engine.GrantLockedBonus(f.ctx, "ghost")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestAuditThroughEngine(t *testing.T) {
	f := newFixture(t)
	root, err := f.engine.Register(f.ctx, "")
	require.NoError(t, err)
	child, err := f.engine.Register(f.ctx, root.ID)
	require.NoError(t, err)
	d, err := f.engine.RequestDeposit(f.ctx, child.ID, "1000")
	require.NoError(t, err)
	_, err = f.engine.VerifyDeposit(f.ctx, d.ID)
	require.NoError(t, err)

	// 10/day for 40 days, past its 30 day waiting period
	f.addOrder(root.ID, "o1", saturdayNoon.AddDate(0, 0, -40), 30, 1000)

	report, err := f.engine.Audit(f.ctx, root.ID)
	require.NoError(t, err)
	requireDecimal(t, 400, report.ProductIncome)
	requireDecimal(t, 120, report.RawTeamIncome)
	requireDecimal(t, 108, report.TeamIncome90)
	requireDecimal(t, 508, report.Allowance)
	require.True(t, report.IsLegal)
	requireDecimal(t, 508, report.MaxLegalWithdrawal)
	require.True(t, report.ProductIncomeUncapped)

	_, err = f.engine.Audit(f.ctx, "ghost")
	require.ErrorIs(t, err, ErrUnknownAccount)
}
