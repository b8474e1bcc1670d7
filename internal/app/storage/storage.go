package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
)

var ErrNotFound = errors.New("record not found")
var ErrAlreadySet = errors.New("value already set")
var ErrDuplicate = errors.New("record already exists")

// ErrConstraint reports a write that would break a CHECK constraint, such
// as a negative balance.
var ErrConstraint = errors.New("constraint violated")

// ErrConflict reports that a transaction lost a race with a concurrent one
// and was rolled back. The whole unit of work may be retried.
var ErrConflict = errors.New("transaction conflict")

// Querier is the set of record operations available inside a transaction.
type Querier interface {
	CreateAccount(ctx context.Context, a entity.Account) error
	// GetAccount locks the account row for the rest of the transaction.
	GetAccount(ctx context.Context, accountID string) (entity.Account, error)
	// UpdateAccountFunds persists the money fields of a; upline references
	// and the secret are never written here.
	UpdateAccountFunds(ctx context.Context, a entity.Account) error
	SetLockedBonus(ctx context.Context, accountID string, amount decimal.Decimal) error
	SetSecretHash(ctx context.Context, accountID string, hash string) error
	SumDepositedByUpline(ctx context.Context, level entity.Level, accountID string) (decimal.Decimal, error)

	CreateOrder(ctx context.Context, o entity.Order) error
	// ListOrders returns the account's orders oldest purchase first.
	ListOrders(ctx context.Context, accountID string) ([]entity.Order, error)
	UpdateOrderBalance(ctx context.Context, orderID string, balance decimal.Decimal) error

	CreateDeposit(ctx context.Context, d entity.Deposit) error
	GetDeposit(ctx context.Context, depositID string) (entity.Deposit, error)
	UpdateDeposit(ctx context.Context, d entity.Deposit) error
	HasVerifiedDeposit(ctx context.Context, accountID string) (bool, error)

	GetPayoutAccount(ctx context.Context, accountID string) (entity.PayoutAccount, error)
	UpsertPayoutAccount(ctx context.Context, p entity.PayoutAccount) error

	CreateWithdrawal(ctx context.Context, w entity.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, requestID string) (entity.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w entity.WithdrawalRequest) error
	// ListWithdrawals returns the account's requests newest first.
	ListWithdrawals(ctx context.Context, accountID string) ([]entity.WithdrawalRequest, error)
	// LatestWithdrawalSince returns the newest request of any status created
	// at or after since, or ErrNotFound.
	LatestWithdrawalSince(ctx context.Context, accountID string, since time.Time) (entity.WithdrawalRequest, error)

	CreateNotification(ctx context.Context, n entity.Notification) error
	ListNotifications(ctx context.Context, accountID string) ([]entity.Notification, error)

	GetSettings(ctx context.Context) (entity.Settings, error)
	PutSettings(ctx context.Context, s entity.Settings) error
}

// Repository runs units of work atomically. Returning an error from fn rolls
// back every write made through its Querier.
type Repository interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
	// View runs fn on a consistent read-only snapshot.
	View(ctx context.Context, fn func(q Querier) error) error
	Close() error
}
