// Package store defines the persistence contract used by the services.
// internal/repository implements it on PostgreSQL; internal/store/memstore
// implements it in memory.
package store

import (
	"context"
	"errors"
	"time"

	"cricket-prediction-bot/internal/model"
)

// Errors returned by store implementations.
var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("concurrent write conflict")
	ErrMatchNotLive        = errors.New("match is not live")
)

// BallDelta is the change one delivery applies to a match.
type BallDelta struct {
	Runs   int
	Wicket bool
	Result string
}

// UserStore persists users. Balance changes are atomic deltas.
type UserStore interface {
	Create(ctx context.Context, id int64, displayName string, balance int64) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Touch refreshes the display name and last_active timestamp.
	Touch(ctx context.Context, id int64, displayName string) error
	UpdateBalance(ctx context.Context, id int64, delta int64) (*model.User, error)
	// Debit subtracts amount only if the balance covers it, otherwise
	// returns ErrInsufficientBalance.
	Debit(ctx context.Context, id int64, amount int64) (*model.User, error)
	// ApplyResult credits amount and increments wins or losses.
	ApplyResult(ctx context.Context, id int64, credit int64, won bool) (*model.User, error)
	SetBalance(ctx context.Context, id int64, balance int64) (*model.User, error)
	TopByBalance(ctx context.Context, limit int) ([]*model.User, error)
	ActiveSince(ctx context.Context, since time.Time) ([]int64, error)
}

// MatchStore persists matches.
type MatchStore interface {
	Create(ctx context.Context, m *model.Match) (*model.Match, error)
	GetByID(ctx context.Context, id int64) (*model.Match, error)
	GetLive(ctx context.Context) (*model.Match, error)
	// CompleteLive marks every live match completed and returns them.
	CompleteLive(ctx context.Context) ([]*model.Match, error)
	// Transition moves a match from one status to another, returning
	// ErrNotFound if the match is not currently in from.
	Transition(ctx context.Context, id int64, from, to model.MatchStatus) (*model.Match, error)
	// Advance applies one ball in a single atomic update. It returns
	// ErrMatchNotLive when the match exists but is paused or completed.
	Advance(ctx context.Context, id int64, delta BallDelta) (*model.BallState, error)
}

// PredictionStore persists prediction records.
type PredictionStore interface {
	Create(ctx context.Context, p *model.Prediction) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Prediction, error)
	StatsByUser(ctx context.Context, userID int64) (*model.PredictionStats, error)
	TopPredictors(ctx context.Context, matchID int64, limit int) ([]*model.PredictorRank, error)
}

// LedgerStore persists balance change records.
type LedgerStore interface {
	Create(ctx context.Context, userID int64, amount int64, txType string, description *string) (*model.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
}

// Store groups the stores and runs transactions over them.
type Store interface {
	Users() UserStore
	Matches() MatchStore
	Predictions() PredictionStore
	Ledger() LedgerStore
	// InTx runs fn inside a transaction. The Store passed to fn is bound to
	// the transaction; returning an error rolls everything back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
