package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
)

type memState struct {
	accounts      map[string]entity.Account
	orders        map[string]entity.Order
	deposits      map[string]entity.Deposit
	payouts       map[string]entity.PayoutAccount
	withdrawals   map[string]entity.WithdrawalRequest
	notifications []entity.Notification
	settings      entity.Settings
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:      make(map[string]entity.Account, len(s.accounts)),
		orders:        make(map[string]entity.Order, len(s.orders)),
		deposits:      make(map[string]entity.Deposit, len(s.deposits)),
		payouts:       make(map[string]entity.PayoutAccount, len(s.payouts)),
		withdrawals:   make(map[string]entity.WithdrawalRequest, len(s.withdrawals)),
		notifications: append([]entity.Notification(nil), s.notifications...),
		settings:      s.settings,
	}
	c.settings.Withdrawal.Weekdays = append([]time.Weekday(nil), s.settings.Withdrawal.Weekdays...)
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

// RepoMemory keeps every record in process memory. Transactions run one at a
// time against a private copy of the state that replaces the shared one only
// when fn succeeds.
type RepoMemory struct {
	mu    sync.Mutex
	state *memState
}

func NewRepoMemory(settings entity.Settings) *RepoMemory {
	return &RepoMemory{
		state: &memState{
			accounts:    make(map[string]entity.Account),
			orders:      make(map[string]entity.Order),
			deposits:    make(map[string]entity.Deposit),
			payouts:     make(map[string]entity.PayoutAccount),
			withdrawals: make(map[string]entity.WithdrawalRequest),
			settings:    settings,
		},
	}
}

func (r *RepoMemory) InTx(ctx context.Context, fn func(q Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.state.clone()
	if err := fn(&memQuerier{st: work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *RepoMemory) View(ctx context.Context, fn func(q Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return fn(&memQuerier{st: r.state.clone()})
}

func (r *RepoMemory) Close() error {
	return nil
}

type memQuerier struct {
	st *memState
}

func (q *memQuerier) CreateAccount(_ context.Context, a entity.Account) error {
	if _, ok := q.st.accounts[a.ID]; ok {
		return ErrDuplicate
	}
	q.st.accounts[a.ID] = a
	return nil
}

func (q *memQuerier) GetAccount(_ context.Context, accountID string) (entity.Account, error) {
	a, ok := q.st.accounts[accountID]
	if !ok {
		return entity.Account{}, ErrNotFound
	}
	return a, nil
}

func (q *memQuerier) UpdateAccountFunds(_ context.Context, a entity.Account) error {
	cur, ok := q.st.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Balance = a.Balance
	cur.PendingDeposit = a.PendingDeposit
	cur.LifetimeDeposited = a.LifetimeDeposited
	cur.LifetimeWithdrawn = a.LifetimeWithdrawn
	cur.LockedBonus = a.LockedBonus
	q.st.accounts[a.ID] = cur
	return nil
}

func (q *memQuerier) SetLockedBonus(_ context.Context, accountID string, amount decimal.Decimal) error {
	a, ok := q.st.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	if a.LockedBonus.Valid {
		return ErrAlreadySet
	}
	a.LockedBonus = decimal.NullDecimal{Decimal: amount, Valid: true}
	q.st.accounts[accountID] = a
	return nil
}

func (q *memQuerier) SetSecretHash(_ context.Context, accountID string, hash string) error {
	a, ok := q.st.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	if a.SecretHash != nil {
		return ErrAlreadySet
	}
	a.SecretHash = &hash
	q.st.accounts[accountID] = a
	return nil
}

func (q *memQuerier) SumDepositedByUpline(_ context.Context, level entity.Level, accountID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range q.st.accounts {
		if a.Upline(level) == accountID {
			sum = sum.Add(a.LifetimeDeposited)
		}
	}
	return sum, nil
}

func (q *memQuerier) CreateOrder(_ context.Context, o entity.Order) error {
	if _, ok := q.st.accounts[o.AccountID]; !ok {
		return ErrNotFound
	}
	if _, ok := q.st.orders[o.ID]; ok {
		return ErrDuplicate
	}
	q.st.orders[o.ID] = o
	return nil
}

func (q *memQuerier) ListOrders(_ context.Context, accountID string) ([]entity.Order, error) {
	var orders []entity.Order
	for _, o := range q.st.orders {
		if o.AccountID == accountID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].PurchasedAt.Equal(orders[j].PurchasedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].PurchasedAt.Before(orders[j].PurchasedAt)
	})
	return orders, nil
}

func (q *memQuerier) UpdateOrderBalance(_ context.Context, orderID string, balance decimal.Decimal) error {
	o, ok := q.st.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Balance = balance
	q.st.orders[orderID] = o
	return nil
}

func (q *memQuerier) CreateDeposit(_ context.Context, d entity.Deposit) error {
	if _, ok := q.st.accounts[d.AccountID]; !ok {
		return ErrNotFound
	}
	if _, ok := q.st.deposits[d.ID]; ok {
		return ErrDuplicate
	}
	q.st.deposits[d.ID] = d
	return nil
}

func (q *memQuerier) GetDeposit(_ context.Context, depositID string) (entity.Deposit, error) {
	d, ok := q.st.deposits[depositID]
	if !ok {
		return entity.Deposit{}, ErrNotFound
	}
	return d, nil
}

func (q *memQuerier) UpdateDeposit(_ context.Context, d entity.Deposit) error {
	cur, ok := q.st.deposits[d.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = d.Status
	cur.VerifiedAt = d.VerifiedAt
	q.st.deposits[d.ID] = cur
	return nil
}

func (q *memQuerier) HasVerifiedDeposit(_ context.Context, accountID string) (bool, error) {
	for _, d := range q.st.deposits {
		if d.AccountID == accountID && d.Status == entity.DepositVerified {
			return true, nil
		}
	}
	return false, nil
}

func (q *memQuerier) GetPayoutAccount(_ context.Context, accountID string) (entity.PayoutAccount, error) {
	p, ok := q.st.payouts[accountID]
	if !ok {
		return entity.PayoutAccount{}, ErrNotFound
	}
	return p, nil
}

func (q *memQuerier) UpsertPayoutAccount(_ context.Context, p entity.PayoutAccount) error {
	if _, ok := q.st.accounts[p.AccountID]; !ok {
		return ErrNotFound
	}
	q.st.payouts[p.AccountID] = p
	return nil
}

func (q *memQuerier) CreateWithdrawal(_ context.Context, w entity.WithdrawalRequest) error {
	if _, ok := q.st.accounts[w.AccountID]; !ok {
		return ErrNotFound
	}
	if _, ok := q.st.withdrawals[w.ID]; ok {
		return ErrDuplicate
	}
	q.st.withdrawals[w.ID] = w
	return nil
}

func (q *memQuerier) GetWithdrawal(_ context.Context, requestID string) (entity.WithdrawalRequest, error) {
	w, ok := q.st.withdrawals[requestID]
	if !ok {
		return entity.WithdrawalRequest{}, ErrNotFound
	}
	return w, nil
}

func (q *memQuerier) UpdateWithdrawal(_ context.Context, w entity.WithdrawalRequest) error {
	cur, ok := q.st.withdrawals[w.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = w.Status
	cur.VerifiedAt = w.VerifiedAt
	cur.Payout = w.Payout
	q.st.withdrawals[w.ID] = cur
	return nil
}

func (q *memQuerier) ListWithdrawals(_ context.Context, accountID string) ([]entity.WithdrawalRequest, error) {
	var withdrawals []entity.WithdrawalRequest
	for _, w := range q.st.withdrawals {
		if w.AccountID == accountID {
			withdrawals = append(withdrawals, w)
		}
	}
	sort.Slice(withdrawals, func(i, j int) bool {
		return withdrawals[i].CreatedAt.After(withdrawals[j].CreatedAt)
	})
	return withdrawals, nil
}

func (q *memQuerier) LatestWithdrawalSince(ctx context.Context, accountID string, since time.Time) (entity.WithdrawalRequest, error) {
	withdrawals, _ := q.ListWithdrawals(ctx, accountID)
	if len(withdrawals) == 0 || withdrawals[0].CreatedAt.Before(since) {
		return entity.WithdrawalRequest{}, ErrNotFound
	}
	return withdrawals[0], nil
}

func (q *memQuerier) CreateNotification(_ context.Context, n entity.Notification) error {
	q.st.notifications = append(q.st.notifications, n)
	return nil
}

func (q *memQuerier) ListNotifications(_ context.Context, accountID string) ([]entity.Notification, error) {
	var notifications []entity.Notification
	for i := len(q.st.notifications) - 1; i >= 0; i-- {
		if q.st.notifications[i].AccountID == accountID {
			notifications = append(notifications, q.st.notifications[i])
		}
	}
	return notifications, nil
}

func (q *memQuerier) GetSettings(_ context.Context) (entity.Settings, error) {
	s := q.st.settings
	s.Withdrawal.Weekdays = append([]time.Weekday(nil), s.Withdrawal.Weekdays...)
	return s, nil
}

func (q *memQuerier) PutSettings(_ context.Context, s entity.Settings) error {
	q.st.settings = s
	q.st.settings.Withdrawal.Weekdays = append([]time.Weekday(nil), s.Withdrawal.Weekdays...)
	return nil
}
