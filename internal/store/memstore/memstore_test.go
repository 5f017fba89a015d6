package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

func TestDebitIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Users().Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	_, err = s.Users().Debit(ctx, 1, 101)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	user, err := s.Users().Debit(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)

	_, err = s.Users().Debit(ctx, 2, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().Create(ctx, 1, "dup", 0)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestSingleLiveMatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.Matches().Create(ctx, &model.Match{Name: "a", Status: model.MatchLive, TotalOvers: 20})
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)

	_, err = s.Matches().Create(ctx, &model.Match{Name: "b", Status: model.MatchLive, TotalOvers: 20})
	assert.ErrorIs(t, err, store.ErrConflict)

	pending, err := s.Matches().Create(ctx, &model.Match{Name: "c", TotalOvers: 20})
	require.NoError(t, err)
	assert.Equal(t, model.MatchPending, pending.Status)

	_, err = s.Matches().Transition(ctx, pending.ID, model.MatchPending, model.MatchLive)
	assert.ErrorIs(t, err, store.ErrConflict)

	closed, err := s.Matches().CompleteLive(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, first.ID, closed[0].ID)

	_, err = s.Matches().GetLive(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdvanceWrapsAndCompletes(t *testing.T) {
	ctx := context.Background()
	s := New()

	m, err := s.Matches().Create(ctx, &model.Match{Name: "a", Status: model.MatchLive, TotalOvers: 5})
	require.NoError(t, err)

	var state *model.BallState
	for i := 0; i < 24; i++ {
		state, err = s.Matches().Advance(ctx, m.ID, store.BallDelta{Runs: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, "3.6", state.Label())

	state, err = s.Matches().Advance(ctx, m.ID, store.BallDelta{Wicket: true, Result: "WICKET"})
	require.NoError(t, err)
	assert.Equal(t, "4.1", state.Label())
	assert.Equal(t, 1, state.Wickets)
	assert.InDelta(t, 5.76, state.RunRate, 0.0001)
	assert.False(t, state.Completed)

	for i := 0; i < 5; i++ {
		state, err = s.Matches().Advance(ctx, m.ID, store.BallDelta{})
		require.NoError(t, err)
	}
	assert.True(t, state.Completed)

	stored, err := s.Matches().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, stored.Status)
	assert.Equal(t, 30, stored.BallsBowled)

	_, err = s.Matches().Advance(ctx, m.ID, store.BallDelta{Runs: 1})
	assert.ErrorIs(t, err, store.ErrMatchNotLive)
}

func TestAdvanceRequiresLiveMatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	m, err := s.Matches().Create(ctx, &model.Match{Name: "a", Status: model.MatchPaused, TotalOvers: 5})
	require.NoError(t, err)

	_, err = s.Matches().Advance(ctx, m.ID, store.BallDelta{Runs: 6})
	assert.ErrorIs(t, err, store.ErrMatchNotLive)

	_, err = s.Matches().Advance(ctx, 404, store.BallDelta{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	stored, err := s.Matches().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.BallsBowled)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Users().Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	boom := errors.New("boom")
	s.FailOn(OpPredictionCreate, boom)

	err = s.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Users().Debit(ctx, 1, 40); err != nil {
			return err
		}
		_, err := tx.Predictions().Create(ctx, &model.Prediction{UserID: 1, MatchID: 1})
		return err
	})
	assert.ErrorIs(t, err, boom)

	user, err := s.Users().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.Balance)
}

func TestCommitFaultRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Users().Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	s.FailTimes(OpCommit, store.ErrConflict, 1)

	err = s.InTx(ctx, func(tx store.Store) error {
		_, err := tx.Users().Debit(ctx, 1, 40)
		return err
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.InTx(ctx, func(tx store.Store) error {
		_, err := tx.Users().Debit(ctx, 1, 40)
		return err
	})
	require.NoError(t, err)

	user, err := s.Users().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(60), user.Balance)
}

func TestConcurrentAdvance(t *testing.T) {
	ctx := context.Background()
	s := New()

	m, err := s.Matches().Create(ctx, &model.Match{Name: "a", Status: model.MatchLive, TotalOvers: 20})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(ctx, func(tx store.Store) error {
				_, err := tx.Matches().Advance(ctx, m.ID, store.BallDelta{Runs: 2})
				return err
			})
		}()
	}
	wg.Wait()

	stored, err := s.Matches().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.BallsBowled)
	assert.Equal(t, 100, stored.Score)
	assert.Equal(t, "8.2", stored.BallLabel())
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Users().Create(ctx, 1, "player", 100)
	require.NoError(t, err)
	m, err := s.Matches().Create(ctx, &model.Match{Name: "a", Status: model.MatchLive, TotalOvers: 20})
	require.NoError(t, err)

	for _, label := range []string{"0.1", "0.2", "0.3"} {
		_, err := s.Predictions().Create(ctx, &model.Prediction{UserID: 1, MatchID: m.ID, BallLabel: label, Stake: 10})
		require.NoError(t, err)
	}

	history, err := s.Predictions().ListByUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "0.3", history[0].BallLabel)
	assert.Equal(t, "0.2", history[1].BallLabel)
}
