// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

// DefaultInitialCoins is the starting balance when none is configured.
const DefaultInitialCoins = 1000

// AccountService handles user account operations.
type AccountService struct {
	store        store.Store
	initialCoins int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(st store.Store, initialCoins int64) *AccountService {
	if initialCoins <= 0 {
		initialCoins = DefaultInitialCoins
	}
	return &AccountService{
		store:        st,
		initialCoins: initialCoins,
	}
}

// InitialCoins returns the starting balance for new users.
func (s *AccountService) InitialCoins() int64 {
	return s.initialCoins
}

// EnsureUser ensures a user exists, creating one with the initial balance if
// necessary, and records activity. Returns the user and whether it was newly
// created.
func (s *AccountService) EnsureUser(ctx context.Context, userID int64, displayName string) (*model.User, bool, error) {
	err := s.store.Users().Touch(ctx, userID, displayName)
	if err == nil {
		user, err := s.store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, false, storeErr("get user", err)
		}
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeErr("touch user", err)
	}

	var user *model.User
	err = s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.Users().Create(ctx, userID, displayName, s.initialCoins)
		if err != nil {
			return err
		}
		desc := "Welcome bonus"
		_, err = tx.Ledger().Create(ctx, userID, s.initialCoins, model.TxTypeInitial, &desc)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		// A concurrent update created the user first.
		user, err = s.store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, false, storeErr("get user", err)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, storeErr("create user", err)
	}

	log.Info().
		Int64("user_id", userID).
		Int64("balance", user.Balance).
		Msg("User created")
	return user, true, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// AdminAddCoins credits coins to a user and records who did it.
func (s *AccountService) AdminAddCoins(ctx context.Context, adminID, userID, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var user *model.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		user, err = tx.Users().UpdateBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("Added by admin %d", adminID)
		_, err = tx.Ledger().Create(ctx, userID, amount, model.TxTypeAdminAdd, &desc)
		return err
	})
	if err != nil {
		return nil, storeErr("add coins", err)
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("balance", user.Balance).
		Msg("Admin added coins")
	return user, nil
}

// AdminResetCoins sets a user's balance back to the initial amount.
func (s *AccountService) AdminResetCoins(ctx context.Context, adminID, userID int64) (*model.User, error) {
	var user *model.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		before, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user, err = tx.Users().SetBalance(ctx, userID, s.initialCoins)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("Reset by admin %d", adminID)
		_, err = tx.Ledger().Create(ctx, userID, s.initialCoins-before.Balance, model.TxTypeAdminReset, &desc)
		return err
	})
	if err != nil {
		return nil, storeErr("reset coins", err)
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("user_id", userID).
		Int64("balance", user.Balance).
		Msg("Admin reset coins")
	return user, nil
}

// History returns the user's most recent predictions, newest first.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.Prediction, error) {
	history, err := s.store.Predictions().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeErr("get history", err)
	}
	return history, nil
}

// Stats aggregates the user's prediction history.
func (s *AccountService) Stats(ctx context.Context, userID int64) (*model.PredictionStats, error) {
	stats, err := s.store.Predictions().StatsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("get stats", err)
	}
	return stats, nil
}

// ActiveUserIDs returns users active within the given window.
func (s *AccountService) ActiveUserIDs(ctx context.Context, within time.Duration) ([]int64, error) {
	ids, err := s.store.Users().ActiveSince(ctx, time.Now().Add(-within))
	if err != nil {
		return nil, storeErr("list active users", err)
	}
	return ids, nil
}
