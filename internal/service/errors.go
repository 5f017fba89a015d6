package service

import (
	"errors"
	"fmt"

	"cricket-prediction-bot/internal/store"
)

// Errors returned by the services. Handlers translate them into chat text.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoPendingPrediction = errors.New("no pending prediction")
	ErrInvalidStake        = errors.New("stake must be positive")
	ErrUnknownCategory     = errors.New("unknown prediction category")
	ErrStakeOutOfRange     = errors.New("stake outside the allowed range for this prediction")
	ErrNotJoined           = errors.New("not joined to a match")
	ErrMatchNotLive        = errors.New("match is not live")
	ErrNoLiveMatch         = errors.New("no live match")
	ErrMatchAlreadyLive    = errors.New("another match is already live")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrInvalidMatch        = errors.New("invalid match details")
	ErrSettleInProgress    = errors.New("settlement already in progress")
)

// InsufficientFundsError reports a stake the balance cannot cover.
type InsufficientFundsError struct {
	Balance int64
	Stake   int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, stake %d", e.Balance, e.Stake)
}

// Is makes errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// storeErr maps a store error onto the service taxonomy so raw store
// errors never leave the package.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, store.ErrMatchNotLive):
		return ErrMatchNotLive
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("failed to %s: %w: %w", op, ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
