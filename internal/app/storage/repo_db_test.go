package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		code string
		want error
	}{
		{"serialization failure", pgerrcode.SerializationFailure, ErrConflict},
		{"deadlock", pgerrcode.DeadlockDetected, ErrConflict},
		{"unique", pgerrcode.UniqueViolation, ErrDuplicate},
		{"foreign key", pgerrcode.ForeignKeyViolation, ErrNotFound},
		{"not null", pgerrcode.NotNullViolation, ErrNotFound},
		{"check", pgerrcode.CheckViolation, ErrConstraint},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: c.code, ConstraintName: "accounts_balance_check"}
			require.ErrorIs(t, classify(pgErr), c.want)
			require.ErrorIs(t, classify(fmt.Errorf("exec: %w", pgErr)), c.want)
		})
	}

	require.NoError(t, classify(nil))

	other := &pgconn.PgError{Code: pgerrcode.SyntaxError}
	require.Same(t, other, classify(other))

	plain := errors.New("connection reset")
	require.Equal(t, plain, classify(plain))
	require.False(t, errors.Is(classify(sql.ErrConnDone), ErrNotFound))
}

func TestCheckViolationIsNotNotFound(t *testing.T) {
	err := classify(&pgconn.PgError{Code: pgerrcode.CheckViolation})
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestNotFound(t *testing.T) {
	require.ErrorIs(t, notFound(sql.ErrNoRows), ErrNotFound)
	require.NoError(t, notFound(nil))
	require.Equal(t, sql.ErrTxDone, notFound(sql.ErrTxDone))
}
