package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
)

var schema = `
CREATE TABLE IF NOT EXISTS accounts(
	account_id			TEXT PRIMARY KEY,
	balance				NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
	pending_deposit		NUMERIC NOT NULL DEFAULT 0 CHECK (pending_deposit >= 0),
	lifetime_deposited	NUMERIC NOT NULL DEFAULT 0,
	lifetime_withdrawn	NUMERIC NOT NULL DEFAULT 0,
	accrual_rate		NUMERIC NOT NULL DEFAULT 0,
	locked_bonus		NUMERIC CHECK (locked_bonus >= 0),
	secret_hash			TEXT,
	upline_a			TEXT NOT NULL DEFAULT '',
	upline_b			TEXT NOT NULL DEFAULT '',
	upline_c			TEXT NOT NULL DEFAULT '',
	upline_d			TEXT NOT NULL DEFAULT '',
	created_at			TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS accounts_upline_a ON accounts(upline_a);
CREATE INDEX IF NOT EXISTS accounts_upline_b ON accounts(upline_b);
CREATE INDEX IF NOT EXISTS accounts_upline_c ON accounts(upline_c);
CREATE INDEX IF NOT EXISTS accounts_upline_d ON accounts(upline_d);

CREATE TABLE IF NOT EXISTS orders(
	order_id		TEXT PRIMARY KEY,
	account_id		TEXT NOT NULL REFERENCES accounts(account_id),
	product_id		TEXT NOT NULL,
	kind			VARCHAR(10) NOT NULL,
	price			NUMERIC NOT NULL,
	accrual_rate	NUMERIC NOT NULL,
	waiting_days	INTEGER NOT NULL,
	purchased_at	TIMESTAMP WITH TIME ZONE NOT NULL,
	balance			NUMERIC NOT NULL CHECK (balance >= 0)
);

CREATE INDEX IF NOT EXISTS orders_account ON orders(account_id, purchased_at);

CREATE TABLE IF NOT EXISTS deposits(
	deposit_id		TEXT PRIMARY KEY,
	account_id		TEXT NOT NULL REFERENCES accounts(account_id),
	amount			NUMERIC NOT NULL,
	status			VARCHAR(10) NOT NULL,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL,
	verified_at		TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS payout_accounts(
	account_id		TEXT PRIMARY KEY REFERENCES accounts(account_id),
	holder			TEXT NOT NULL,
	method			TEXT NOT NULL,
	number			TEXT NOT NULL,
	updated_at		TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS withdrawals(
	request_id		TEXT PRIMARY KEY,
	account_id		TEXT NOT NULL REFERENCES accounts(account_id),
	amount			NUMERIC NOT NULL,
	fee				NUMERIC NOT NULL,
	net				NUMERIC NOT NULL,
	payout_holder	TEXT NOT NULL,
	payout_method	TEXT NOT NULL,
	payout_number	TEXT NOT NULL,
	status			VARCHAR(10) NOT NULL,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL,
	verified_at		TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS withdrawals_account ON withdrawals(account_id, created_at);

CREATE TABLE IF NOT EXISTS notifications(
	notification_id	TEXT PRIMARY KEY,
	account_id		TEXT NOT NULL,
	kind			VARCHAR(32) NOT NULL,
	amount			NUMERIC NOT NULL,
	status			VARCHAR(16) NOT NULL,
	read			BOOLEAN NOT NULL DEFAULT FALSE,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS settings(
	settings_id		INTEGER PRIMARY KEY,
	body			JSONB NOT NULL
);`

const accountColumns = `account_id, balance, pending_deposit, lifetime_deposited, lifetime_withdrawn,
	accrual_rate, locked_bonus, secret_hash, upline_a, upline_b, upline_c, upline_d, created_at`

const orderColumns = `order_id, account_id, product_id, kind, price, accrual_rate, waiting_days, purchased_at, balance`

const withdrawalColumns = `request_id, account_id, amount, fee, net, payout_holder, payout_method, payout_number,
	status, created_at, verified_at`

var uplineColumns = map[entity.Level]string{
	entity.LevelA: "upline_a",
	entity.LevelB: "upline_b",
	entity.LevelC: "upline_c",
	entity.LevelD: "upline_d",
}

type withdrawalRow struct {
	ID           string                  `db:"request_id"`
	AccountID    string                  `db:"account_id"`
	Amount       decimal.Decimal         `db:"amount"`
	Fee          decimal.Decimal         `db:"fee"`
	Net          decimal.Decimal         `db:"net"`
	PayoutHolder string                  `db:"payout_holder"`
	PayoutMethod string                  `db:"payout_method"`
	PayoutNumber string                  `db:"payout_number"`
	Status       entity.WithdrawalStatus `db:"status"`
	CreatedAt    time.Time               `db:"created_at"`
	VerifiedAt   *time.Time              `db:"verified_at"`
}

func (r withdrawalRow) entity() entity.WithdrawalRequest {
	return entity.WithdrawalRequest{
		ID:        r.ID,
		AccountID: r.AccountID,
		Amount:    r.Amount,
		Fee:       r.Fee,
		Net:       r.Net,
		Payout: entity.PayoutDestination{
			Holder: r.PayoutHolder,
			Method: r.PayoutMethod,
			Number: r.PayoutNumber,
		},
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		VerifiedAt: r.VerifiedAt,
	}
}

type payoutRow struct {
	AccountID string    `db:"account_id"`
	Holder    string    `db:"holder"`
	Method    string    `db:"method"`
	Number    string    `db:"number"`
	UpdatedAt time.Time `db:"updated_at"`
}

type RepoDB struct {
	db *sqlx.DB
}

func NewRepoDB(databaseURI string) (*RepoDB, error) {
	db, err := sqlx.Connect("pgx", databaseURI)
	if err != nil {
		return nil, err
	}

	db.MustExec(schema)

	return &RepoDB{db: db}, nil
}

// InTx runs fn in a serializable transaction. Serialization failures and
// deadlocks come back as ErrConflict.
func (r *RepoDB) InTx(ctx context.Context, fn func(q Querier) error) error {
	return r.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, true, fn)
}

func (r *RepoDB) View(ctx context.Context, fn func(q Querier) error) error {
	return r.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, false, fn)
}

func (r *RepoDB) run(ctx context.Context, opts *sql.TxOptions, lock bool, fn func(q Querier) error) error {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return classify(err)
	}
	defer func(tx *sqlx.Tx) {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Logger.Err(err).Msg("rollback")
		}
	}(tx)

	if err = fn(&dbQuerier{ext: tx, lock: lock}); err != nil {
		return classify(err)
	}

	return classify(tx.Commit())
}

func (r *RepoDB) Close() error {
	return r.db.Close()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.SerializationFailure, pgErr.Code == pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgErr.Code == pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.ConstraintName)
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type dbQuerier struct {
	ext  sqlx.ExtContext
	lock bool
}

func (q *dbQuerier) CreateAccount(ctx context.Context, a entity.Account) error {
	queryCreateAccount := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := q.ext.ExecContext(ctx, queryCreateAccount, a.ID, a.Balance, a.PendingDeposit, a.LifetimeDeposited,
		a.LifetimeWithdrawn, a.AccrualRate, a.LockedBonus, a.SecretHash, a.UplineA, a.UplineB, a.UplineC, a.UplineD,
		a.CreatedAt)
	return err
}

func (q *dbQuerier) GetAccount(ctx context.Context, accountID string) (entity.Account, error) {
	var account entity.Account
	queryGetAccount := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ($1)`
	if q.lock {
		queryGetAccount += ` FOR UPDATE`
	}
	err := sqlx.GetContext(ctx, q.ext, &account, queryGetAccount, accountID)
	return account, notFound(err)
}

func (q *dbQuerier) UpdateAccountFunds(ctx context.Context, a entity.Account) error {
	queryUpdateFunds := `UPDATE accounts SET balance = ($1), pending_deposit = ($2), lifetime_deposited = ($3),
		lifetime_withdrawn = ($4), locked_bonus = ($5) WHERE account_id = ($6)`
	return q.execOne(ctx, queryUpdateFunds, a.Balance, a.PendingDeposit, a.LifetimeDeposited, a.LifetimeWithdrawn,
		a.LockedBonus, a.ID)
}

func (q *dbQuerier) SetLockedBonus(ctx context.Context, accountID string, amount decimal.Decimal) error {
	querySetBonus := `UPDATE accounts SET locked_bonus = ($1) WHERE account_id = ($2) AND locked_bonus IS NULL`
	return q.setOnce(ctx, accountID, querySetBonus, amount, accountID)
}

func (q *dbQuerier) SetSecretHash(ctx context.Context, accountID string, hash string) error {
	querySetSecret := `UPDATE accounts SET secret_hash = ($1) WHERE account_id = ($2) AND secret_hash IS NULL`
	return q.setOnce(ctx, accountID, querySetSecret, hash, accountID)
}

// setOnce tells an absent account apart from a field that was already set
// when the guarded update touches no row.
func (q *dbQuerier) setOnce(ctx context.Context, accountID string, query string, args ...interface{}) error {
	err := q.execOne(ctx, query, args...)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	var exists bool
	err = sqlx.GetContext(ctx, q.ext, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_id = ($1))`, accountID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadySet
	}
	return ErrNotFound
}

func (q *dbQuerier) SumDepositedByUpline(ctx context.Context, level entity.Level, accountID string) (decimal.Decimal, error) {
	column, ok := uplineColumns[level]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown upline level %q", level)
	}
	var sum decimal.Decimal
	querySum := `SELECT COALESCE(SUM(lifetime_deposited), 0) FROM accounts WHERE ` + column + ` = ($1)`
	err := sqlx.GetContext(ctx, q.ext, &sum, querySum, accountID)
	return sum, err
}

func (q *dbQuerier) CreateOrder(ctx context.Context, o entity.Order) error {
	querySaveOrder := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.ext.ExecContext(ctx, querySaveOrder, o.ID, o.AccountID, o.ProductID, o.Kind, o.Price, o.AccrualRate,
		o.WaitingDays, o.PurchasedAt, o.Balance)
	return err
}

func (q *dbQuerier) ListOrders(ctx context.Context, accountID string) ([]entity.Order, error) {
	var orders []entity.Order
	queryGetOrders := `SELECT ` + orderColumns + ` FROM orders WHERE account_id = ($1) ORDER BY purchased_at ASC, order_id ASC`
	if q.lock {
		queryGetOrders += ` FOR UPDATE`
	}
	err := sqlx.SelectContext(ctx, q.ext, &orders, queryGetOrders, accountID)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (q *dbQuerier) UpdateOrderBalance(ctx context.Context, orderID string, balance decimal.Decimal) error {
	queryUpdateBalance := `UPDATE orders SET balance = ($1) WHERE order_id = ($2)`
	return q.execOne(ctx, queryUpdateBalance, balance, orderID)
}

func (q *dbQuerier) CreateDeposit(ctx context.Context, d entity.Deposit) error {
	querySaveDeposit := `INSERT INTO deposits (deposit_id, account_id, amount, status, created_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.ext.ExecContext(ctx, querySaveDeposit, d.ID, d.AccountID, d.Amount, d.Status, d.CreatedAt, d.VerifiedAt)
	return err
}

func (q *dbQuerier) GetDeposit(ctx context.Context, depositID string) (entity.Deposit, error) {
	var deposit entity.Deposit
	queryGetDeposit := `SELECT deposit_id, account_id, amount, status, created_at, verified_at FROM deposits WHERE deposit_id = ($1)`
	if q.lock {
		queryGetDeposit += ` FOR UPDATE`
	}
	err := sqlx.GetContext(ctx, q.ext, &deposit, queryGetDeposit, depositID)
	return deposit, notFound(err)
}

func (q *dbQuerier) UpdateDeposit(ctx context.Context, d entity.Deposit) error {
	queryUpdateDeposit := `UPDATE deposits SET status = ($1), verified_at = ($2) WHERE deposit_id = ($3)`
	return q.execOne(ctx, queryUpdateDeposit, d.Status, d.VerifiedAt, d.ID)
}

func (q *dbQuerier) HasVerifiedDeposit(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	queryVerified := `SELECT EXISTS(SELECT 1 FROM deposits WHERE account_id = ($1) AND status = ($2))`
	err := sqlx.GetContext(ctx, q.ext, &exists, queryVerified, accountID, entity.DepositVerified)
	return exists, err
}

func (q *dbQuerier) GetPayoutAccount(ctx context.Context, accountID string) (entity.PayoutAccount, error) {
	var row payoutRow
	queryGetPayout := `SELECT account_id, holder, method, number, updated_at FROM payout_accounts WHERE account_id = ($1)`
	if err := sqlx.GetContext(ctx, q.ext, &row, queryGetPayout, accountID); err != nil {
		return entity.PayoutAccount{}, notFound(err)
	}
	return entity.PayoutAccount{
		AccountID:   row.AccountID,
		Destination: entity.PayoutDestination{Holder: row.Holder, Method: row.Method, Number: row.Number},
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (q *dbQuerier) UpsertPayoutAccount(ctx context.Context, p entity.PayoutAccount) error {
	queryUpsertPayout := `INSERT INTO payout_accounts (account_id, holder, method, number, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET holder = EXCLUDED.holder, method = EXCLUDED.method,
			number = EXCLUDED.number, updated_at = EXCLUDED.updated_at`
	_, err := q.ext.ExecContext(ctx, queryUpsertPayout, p.AccountID, p.Destination.Holder, p.Destination.Method,
		p.Destination.Number, p.UpdatedAt)
	return err
}

func (q *dbQuerier) CreateWithdrawal(ctx context.Context, w entity.WithdrawalRequest) error {
	queryAddWithdrawal := `INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ext.ExecContext(ctx, queryAddWithdrawal, w.ID, w.AccountID, w.Amount, w.Fee, w.Net, w.Payout.Holder,
		w.Payout.Method, w.Payout.Number, w.Status, w.CreatedAt, w.VerifiedAt)
	return err
}

func (q *dbQuerier) GetWithdrawal(ctx context.Context, requestID string) (entity.WithdrawalRequest, error) {
	var row withdrawalRow
	queryGetWithdrawal := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE request_id = ($1)`
	if q.lock {
		queryGetWithdrawal += ` FOR UPDATE`
	}
	if err := sqlx.GetContext(ctx, q.ext, &row, queryGetWithdrawal, requestID); err != nil {
		return entity.WithdrawalRequest{}, notFound(err)
	}
	return row.entity(), nil
}

func (q *dbQuerier) UpdateWithdrawal(ctx context.Context, w entity.WithdrawalRequest) error {
	queryUpdateWithdrawal := `UPDATE withdrawals SET status = ($1), verified_at = ($2), payout_holder = ($3),
		payout_method = ($4), payout_number = ($5) WHERE request_id = ($6)`
	return q.execOne(ctx, queryUpdateWithdrawal, w.Status, w.VerifiedAt, w.Payout.Holder, w.Payout.Method,
		w.Payout.Number, w.ID)
}

func (q *dbQuerier) ListWithdrawals(ctx context.Context, accountID string) ([]entity.WithdrawalRequest, error) {
	var rows []withdrawalRow
	queryGetWithdrawals := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE account_id = ($1) ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, q.ext, &rows, queryGetWithdrawals, accountID); err != nil {
		return nil, err
	}
	withdrawals := make([]entity.WithdrawalRequest, 0, len(rows))
	for _, row := range rows {
		withdrawals = append(withdrawals, row.entity())
	}
	return withdrawals, nil
}

func (q *dbQuerier) LatestWithdrawalSince(ctx context.Context, accountID string, since time.Time) (entity.WithdrawalRequest, error) {
	var row withdrawalRow
	queryLatest := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE account_id = ($1) AND created_at >= ($2) ORDER BY created_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, q.ext, &row, queryLatest, accountID, since); err != nil {
		return entity.WithdrawalRequest{}, notFound(err)
	}
	return row.entity(), nil
}

func (q *dbQuerier) CreateNotification(ctx context.Context, n entity.Notification) error {
	queryAddNotification := `INSERT INTO notifications (notification_id, account_id, kind, amount, status, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.ext.ExecContext(ctx, queryAddNotification, n.ID, n.AccountID, n.Kind, n.Amount, n.Status, n.Read, n.CreatedAt)
	return err
}

func (q *dbQuerier) ListNotifications(ctx context.Context, accountID string) ([]entity.Notification, error) {
	var notifications []entity.Notification
	queryGetNotifications := `SELECT notification_id, account_id, kind, amount, status, read, created_at
		FROM notifications WHERE account_id = ($1) ORDER BY created_at DESC`
	err := sqlx.SelectContext(ctx, q.ext, &notifications, queryGetNotifications, accountID)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (q *dbQuerier) GetSettings(ctx context.Context) (entity.Settings, error) {
	var body []byte
	err := sqlx.GetContext(ctx, q.ext, &body, `SELECT body FROM settings WHERE settings_id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DefaultSettings(), nil
	}
	if err != nil {
		return entity.Settings{}, err
	}
	var settings entity.Settings
	if err = json.Unmarshal(body, &settings); err != nil {
		return entity.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (q *dbQuerier) PutSettings(ctx context.Context, s entity.Settings) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	queryPutSettings := `INSERT INTO settings (settings_id, body) VALUES (1, $1)
		ON CONFLICT (settings_id) DO UPDATE SET body = EXCLUDED.body`
	_, err = q.ext.ExecContext(ctx, queryPutSettings, body)
	return err
}

func (q *dbQuerier) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
