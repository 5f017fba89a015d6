// Package repository provides the PostgreSQL implementation of the store contract.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"cricket-prediction-bot/internal/store"
)

// PostgreSQL error codes mapped to store errors.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// constraintUserBalance is the name PostgreSQL gives the users.balance CHECK.
const constraintUserBalance = "users_balance_check"

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so repositories work the
// same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Store bundles the repositories over one connection source.
type Store struct {
	db   DBTX
	inTx bool
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Store backed by db (normally the connection pool).
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Users returns the user repository.
func (s *Store) Users() store.UserStore { return NewUserRepository(s.db) }

// Matches returns the match repository.
func (s *Store) Matches() store.MatchStore { return NewMatchRepository(s.db) }

// Predictions returns the prediction repository.
func (s *Store) Predictions() store.PredictionStore { return NewPredictionRepository(s.db) }

// Ledger returns the transaction ledger repository.
func (s *Store) Ledger() store.LedgerStore { return NewTransactionRepository(s.db) }

// InTx runs fn in a database transaction. Calls made while already inside a
// transaction join it.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&Store{db: tx, inTx: true})
	})
	if err != nil {
		if isConflict(err) && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("failed to commit: %w: %w", store.ErrConflict, err)
		}
		return err
	}
	return nil
}

// isConflict reports whether err is a retryable concurrent write failure.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return true
	}
	return false
}

// isBalanceViolation reports whether err is the non-negative balance CHECK
// failing. Other CHECK failures are plain errors.
func isBalanceViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == codeCheckViolation &&
		pgErr.ConstraintName == constraintUserBalance
}

// wrapErr maps driver errors onto store errors and adds the operation name.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return store.ErrNotFound
	case isConflict(err):
		return fmt.Errorf("failed to %s: %w: %w", op, store.ErrConflict, err)
	case isBalanceViolation(err):
		return fmt.Errorf("failed to %s: %w", op, store.ErrInsufficientBalance)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
