package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/metrics"
	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/pkg/lock"
	"cricket-prediction-bot/internal/session"
	"cricket-prediction-bot/internal/store"
)

// DefaultSettleRetries is used when the configured retry count is negative.
const DefaultSettleRetries = 3

// SettlementResult is what a confirmed prediction produced.
type SettlementResult struct {
	MatchID      int64
	Category     cricket.Category
	Outcome      cricket.DetailedOutcome
	Won          bool
	Stake        int64
	Winnings     int64
	Balance      int64
	Ball         *model.BallState
	PredictionID int64
}

// Net returns the balance change caused by the settlement.
func (r *SettlementResult) Net() int64 {
	return r.Winnings - r.Stake
}

// Settler resolves a user's pending prediction against a freshly drawn ball.
type Settler struct {
	store     store.Store
	sessions  *session.Registry
	generator *cricket.Generator
	locks     *lock.UserLock
	retries   int
}

// NewSettler creates a Settler. retries is the number of extra attempts made
// after a write conflict.
func NewSettler(
	st store.Store,
	sessions *session.Registry,
	generator *cricket.Generator,
	locks *lock.UserLock,
	retries int,
) *Settler {
	if retries < 0 {
		retries = DefaultSettleRetries
	}
	if locks == nil {
		locks = lock.NewUserLock()
	}
	return &Settler{
		store:     st,
		sessions:  sessions,
		generator: generator,
		locks:     locks,
		retries:   retries,
	}
}

// Settle settles the user's pending prediction.
//
// The debit, the draw, the credit, the match advance, the prediction record
// and both ledger rows commit together or not at all. The pending prediction
// is cleared only after commit.
func (s *Settler) Settle(ctx context.Context, userID int64) (*SettlementResult, error) {
	start := time.Now()

	var result *SettlementResult
	err := s.locks.WithLock(ctx, userID, func() error {
		var err error
		result, err = s.settle(ctx, userID)
		return err
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		err = fmt.Errorf("failed to lock user: %w: %w", ErrStoreUnavailable, err)
	}

	recordSettlement(result, err, time.Since(start))
	return result, err
}

// TrySettle settles like Settle but returns ErrSettleInProgress instead of
// waiting when the user's previous confirm is still being settled.
func (s *Settler) TrySettle(ctx context.Context, userID int64) (*SettlementResult, error) {
	if !s.locks.TryLock(userID) {
		return nil, ErrSettleInProgress
	}
	defer s.locks.Unlock(userID)

	start := time.Now()
	result, err := s.settle(ctx, userID)
	recordSettlement(result, err, time.Since(start))
	return result, err
}

func (s *Settler) settle(ctx context.Context, userID int64) (*SettlementResult, error) {
	sess, ok := s.sessions.Get(userID)
	if !ok || !sess.HasPrediction() {
		return nil, ErrNoPendingPrediction
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user.Balance < sess.Stake {
		return nil, &InsufficientFundsError{Balance: user.Balance, Stake: sess.Stake}
	}

	attempts := s.retries + 1
	var result *SettlementResult
	for attempt := 1; ; attempt++ {
		result, err = s.attempt(ctx, sess)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= attempts || ctx.Err() != nil {
			return nil, s.settleErr(ctx, sess, attempt, err)
		}

		metrics.RecordRetry()
		log.Warn().
			Err(err).
			Int64("user_id", userID).
			Int64("match_id", sess.MatchID).
			Int("attempt", attempt).
			Msg("Settlement conflicted, retrying")
	}

	s.sessions.ClearPrediction(userID)
	return result, nil
}

// attempt runs one settlement transaction.
func (s *Settler) attempt(ctx context.Context, sess session.Session) (*SettlementResult, error) {
	category := cricket.Category(sess.Prediction)
	result := &SettlementResult{
		MatchID:  sess.MatchID,
		Category: category,
		Stake:    sess.Stake,
	}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Users().Debit(ctx, sess.UserID, sess.Stake); err != nil {
			return err
		}

		result.Outcome = s.generator.DrawDetailed()
		result.Won = cricket.Settles(category, result.Outcome.Outcome)
		result.Winnings = 0
		if result.Won {
			result.Winnings = cricket.Winnings(category, sess.Stake)
		}

		user, err := tx.Users().ApplyResult(ctx, sess.UserID, result.Winnings, result.Won)
		if err != nil {
			return err
		}
		result.Balance = user.Balance

		ball, err := tx.Matches().Advance(ctx, sess.MatchID, store.BallDelta{
			Runs:   result.Outcome.Outcome.Runs(),
			Wicket: result.Outcome.Outcome.IsWicket(),
			Result: result.Outcome.Outcome.String(),
		})
		if err != nil {
			return err
		}
		result.Ball = ball

		result.PredictionID, err = tx.Predictions().Create(ctx, &model.Prediction{
			UserID:       sess.UserID,
			MatchID:      sess.MatchID,
			BallOver:     ball.Over,
			BallNumber:   ball.Ball,
			BallLabel:    ball.Label(),
			Category:     string(category),
			ActualResult: result.Outcome.Outcome.String(),
			Stake:        sess.Stake,
			Winnings:     result.Winnings,
			IsWinner:     result.Won,
		})
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Stake on %s, ball %s", category, ball.Label())
		if _, err := tx.Ledger().Create(ctx, sess.UserID, -sess.Stake, model.TxTypeStake, &desc); err != nil {
			return err
		}
		if result.Won {
			desc := fmt.Sprintf("Payout for %s, ball %s", category, ball.Label())
			if _, err := tx.Ledger().Create(ctx, sess.UserID, result.Winnings, model.TxTypePayout, &desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// settleErr maps a failed attempt onto the service taxonomy.
func (s *Settler) settleErr(ctx context.Context, sess session.Session, attempts int, err error) error {
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		// Another debit won the race after the precondition check.
		balance := int64(0)
		if user, gerr := s.store.Users().GetByID(ctx, sess.UserID); gerr == nil {
			balance = user.Balance
		}
		return &InsufficientFundsError{Balance: balance, Stake: sess.Stake}
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrMatchNotLive):
		// The match was stopped, paused or completed after the session check.
		return ErrMatchNotLive
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("settlement gave up after %d attempts: %w: %w: %w",
			attempts, ErrStoreUnavailable, ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("failed to settle: %w: %w", ErrStoreUnavailable, err)
	}
}

func recordSettlement(result *SettlementResult, err error, elapsed time.Duration) {
	switch {
	case err == nil && result.Won:
		metrics.RecordSettlement(metrics.ResultWin, result.Stake, result.Winnings, elapsed)
	case err == nil:
		metrics.RecordSettlement(metrics.ResultLoss, result.Stake, 0, elapsed)
	case errors.Is(err, ErrInsufficientFunds):
		metrics.RecordSettlement(metrics.ResultInsufficientFunds, 0, 0, elapsed)
	case errors.Is(err, ErrNoPendingPrediction):
		metrics.RecordSettlement(metrics.ResultNoPrediction, 0, 0, elapsed)
	default:
		metrics.RecordSettlement(metrics.ResultError, 0, 0, elapsed)
	}
}
