package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderKind string

const (
	OrderStandard OrderKind = "standard"
	OrderWeekend  OrderKind = "weekend"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalVerified WithdrawalStatus = "verified"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositVerified DepositStatus = "verified"
)

type NotificationKind string

const (
	NotifyPurchase            NotificationKind = "purchase"
	NotifyDepositVerified     NotificationKind = "deposit_verified"
	NotifyWithdrawalSubmitted NotificationKind = "withdrawal_submitted"
	NotifyWithdrawalVerified  NotificationKind = "withdrawal_verified"
	NotifyWithdrawalRejected  NotificationKind = "withdrawal_rejected"
)

// Account is the money-bearing side of a user. Upline references are copied
// at registration and never change; an empty string means no referrer at
// that level. Balance and AccrualRate belong to standard-order income,
// which is credited elsewhere; settlement only reads them.
type Account struct {
	ID                string              `json:"id" db:"account_id"`
	Balance           decimal.Decimal     `json:"balance" db:"balance"`
	PendingDeposit    decimal.Decimal     `json:"pending_deposit" db:"pending_deposit"`
	LifetimeDeposited decimal.Decimal     `json:"lifetime_deposited" db:"lifetime_deposited"`
	LifetimeWithdrawn decimal.Decimal     `json:"lifetime_withdrawn" db:"lifetime_withdrawn"`
	AccrualRate       decimal.Decimal     `json:"accrual_rate" db:"accrual_rate"`
	LockedBonus       decimal.NullDecimal `json:"locked_bonus" db:"locked_bonus"`
	SecretHash        *string             `json:"-" db:"secret_hash"`
	UplineA           string              `json:"upline_a" db:"upline_a"`
	UplineB           string              `json:"upline_b" db:"upline_b"`
	UplineC           string              `json:"upline_c" db:"upline_c"`
	UplineD           string              `json:"upline_d" db:"upline_d"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
}

// Bonus returns the locked bonus balance, zero when it was never granted.
func (a Account) Bonus() decimal.Decimal {
	if !a.LockedBonus.Valid {
		return decimal.Zero
	}
	return a.LockedBonus.Decimal
}

func (a Account) HasSecret() bool {
	return a.SecretHash != nil && *a.SecretHash != ""
}

// Upline returns the reference stored for the given level.
func (a Account) Upline(level Level) string {
	switch level {
	case LevelA:
		return a.UplineA
	case LevelB:
		return a.UplineB
	case LevelC:
		return a.UplineC
	case LevelD:
		return a.UplineD
	}
	return ""
}

// Product is a purchasable offer. It is not stored by the core; request
// handlers resolve it from the catalogue and pass it in.
type Product struct {
	ID          string          `json:"id"`
	Kind        OrderKind       `json:"kind"`
	Price       decimal.Decimal `json:"price"`
	AccrualRate decimal.Decimal `json:"accrual_rate"`
	WaitingDays int             `json:"waiting_days"`
}

type Order struct {
	ID          string          `json:"id" db:"order_id"`
	AccountID   string          `json:"account_id" db:"account_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	Kind        OrderKind       `json:"kind" db:"kind"`
	Price       decimal.Decimal `json:"price" db:"price"`
	AccrualRate decimal.Decimal `json:"accrual_rate" db:"accrual_rate"`
	WaitingDays int             `json:"waiting_days" db:"waiting_days"`
	PurchasedAt time.Time       `json:"purchased_at" db:"purchased_at"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
}

type Deposit struct {
	ID         string          `json:"id" db:"deposit_id"`
	AccountID  string          `json:"account_id" db:"account_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Status     DepositStatus   `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
}

// PayoutDestination is where a withdrawal is paid to.
type PayoutDestination struct {
	Holder string `json:"holder"`
	Method string `json:"method"`
	Number string `json:"number"`
}

func (d PayoutDestination) IsZero() bool {
	return d.Holder == "" && d.Method == "" && d.Number == ""
}

type PayoutAccount struct {
	AccountID   string            `json:"account_id"`
	Destination PayoutDestination `json:"destination"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// WithdrawalRequest keeps its own copy of the payout destination; edits to
// the live payout account never reach it.
type WithdrawalRequest struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Fee        decimal.Decimal   `json:"fee"`
	Net        decimal.Decimal   `json:"net"`
	Payout     PayoutDestination `json:"payout"`
	Status     WithdrawalStatus  `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	VerifiedAt *time.Time        `json:"verified_at,omitempty"`
}

type Notification struct {
	ID        string           `json:"id" db:"notification_id"`
	AccountID string           `json:"account_id" db:"account_id"`
	Kind      NotificationKind `json:"kind" db:"kind"`
	Amount    decimal.Decimal  `json:"amount" db:"amount"`
	Status    string           `json:"status" db:"status"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
