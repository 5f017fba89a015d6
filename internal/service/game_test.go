package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
	"cricket-prediction-bot/internal/store/memstore"
)

func TestGameService_Join(t *testing.T) {
	h := newHarness(t, fixed(drawSix), 3)

	sess, match, err := h.game.Join(h.ctx, 42, h.match.ID)
	require.NoError(t, err)
	assert.Equal(t, h.match.ID, sess.MatchID)
	assert.Equal(t, int64(10), sess.Stake)
	assert.Equal(t, "IND vs AUS", match.Name)

	_, _, err = h.game.Join(h.ctx, 42, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := h.store.Matches().Create(h.ctx, &model.Match{Name: "later", TotalOvers: 20})
	require.NoError(t, err)
	_, _, err = h.game.Join(h.ctx, 42, pending.ID)
	assert.ErrorIs(t, err, ErrMatchNotLive)

	sess, ok := h.game.Session(42)
	require.True(t, ok)
	assert.Equal(t, h.match.ID, sess.MatchID)
}

func TestGameService_JoinLive(t *testing.T) {
	h := newHarness(t, fixed(drawSix), 3)

	sess, match, err := h.game.JoinLive(h.ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, h.match.ID, match.ID)
	assert.Equal(t, h.match.ID, sess.MatchID)

	_, err = h.matches.Stop(h.ctx)
	require.NoError(t, err)

	_, _, err = h.game.JoinLive(h.ctx, 42)
	assert.ErrorIs(t, err, ErrNoLiveMatch)
}

func TestGameService_StakeAndPrediction(t *testing.T) {
	h := newHarness(t, fixed(drawSix), 3)

	_, err := h.game.SetStake(42, 50)
	assert.ErrorIs(t, err, ErrNotJoined)
	_, err = h.game.SetPrediction(42, string(cricket.CategorySix))
	assert.ErrorIs(t, err, ErrNotJoined)

	_, _, err = h.game.JoinLive(h.ctx, 42)
	require.NoError(t, err)

	tests := []struct {
		name     string
		stake    int64
		category string
		wantErr  error
	}{
		{"zero stake", 0, "", ErrInvalidStake},
		{"negative stake", -5, "", ErrInvalidStake},
		{"unknown category", 0, "seven_runs", ErrUnknownCategory},
		{"wicket below minimum", 0, string(cricket.CategoryWicket), ErrStakeOutOfRange},
		{"two runs at default stake", 0, string(cricket.CategoryTwoRuns), nil},
		{"stake above two runs maximum", 150, "", ErrStakeOutOfRange},
		{"stake within two runs range", 100, "", nil},
		{"six at 100", 0, string(cricket.CategorySix), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.category != "" {
				_, err = h.game.SetPrediction(42, tt.category)
			} else {
				_, err = h.game.SetStake(42, tt.stake)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	sess, ok := h.game.Session(42)
	require.True(t, ok)
	assert.Equal(t, int64(100), sess.Stake)
	assert.Equal(t, string(cricket.CategorySix), sess.Prediction)
}

func TestGameService_FullRound(t *testing.T) {
	h := newHarness(t, fixed(drawSix), 3)

	_, _, err := h.accounts.EnsureUser(h.ctx, 42, "virat")
	require.NoError(t, err)
	_, _, err = h.game.JoinLive(h.ctx, 42)
	require.NoError(t, err)
	_, err = h.game.SetStake(42, 30)
	require.NoError(t, err)
	_, err = h.game.SetPrediction(42, string(cricket.CategorySix))
	require.NoError(t, err)

	res, err := h.game.Settle(h.ctx, 42)
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.Equal(t, int64(90), res.Winnings)
	assert.Equal(t, int64(1060), res.Balance)

	_, err = h.game.Settle(h.ctx, 42)
	assert.ErrorIs(t, err, ErrNoPendingPrediction)

	assert.True(t, h.game.Leave(42))
	assert.False(t, h.game.Leave(42))
	_, ok := h.game.Session(42)
	assert.False(t, ok)
}

func TestGameService_SettleRequiresLiveMatch(t *testing.T) {
	h := newHarness(t, fixed(drawSix), 3)
	h.player(t, 42, 1000, 30, cricket.CategorySix)

	_, err := h.matches.Pause(h.ctx)
	require.NoError(t, err)

	_, err = h.game.Settle(h.ctx, 42)
	assert.ErrorIs(t, err, ErrMatchNotLive)
	assert.Equal(t, int64(1000), h.balance(t, 42))

	sess, ok := h.game.Session(42)
	require.True(t, ok)
	assert.True(t, sess.HasPrediction(), "prediction survives the pause")

	_, err = h.matches.Resume(h.ctx, h.match.ID)
	require.NoError(t, err)
	res, err := h.game.Settle(h.ctx, 42)
	require.NoError(t, err)
	assert.True(t, res.Won)
}

// gatedStore holds the first n match reads until all of them arrive, so
// concurrent confirms all see the match before any of them settles.
type gatedStore struct {
	*memstore.Store
	gate *gate
}

type gate struct {
	n       int32
	calls   atomic.Int32
	arrived sync.WaitGroup
}

func newGate(n int) *gate {
	g := &gate{n: int32(n)}
	g.arrived.Add(n)
	return g
}

func (g *gate) pass() {
	if g.calls.Add(1) <= g.n {
		g.arrived.Done()
		g.arrived.Wait()
	}
}

func (s *gatedStore) Matches() store.MatchStore {
	return gatedMatches{MatchStore: s.Store.Matches(), gate: s.gate}
}

type gatedMatches struct {
	store.MatchStore
	gate *gate
}

func (m gatedMatches) GetByID(ctx context.Context, id int64) (*model.Match, error) {
	m.gate.pass()
	return m.MatchStore.GetByID(ctx, id)
}

func TestGameService_ConcurrentConfirmsOnLastBall(t *testing.T) {
	h := newHarness(t, fixed(drawDot), 3)

	var err error
	h.match, _, err = h.matches.Start(h.ctx, 1, StartMatchRequest{Name: "Super Over", TeamA: "India", TeamB: "Australia", TotalOvers: 1})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := h.store.Matches().Advance(h.ctx, h.match.ID, store.BallDelta{})
		require.NoError(t, err)
	}

	players := []int64{10, 11}
	for _, id := range players {
		h.player(t, id, 500, 50, cricket.CategoryDotBall)
	}

	game := NewGameService(&gatedStore{Store: h.store, gate: newGate(len(players))}, h.sessions, h.settler)

	errs := make([]error, len(players))
	var wg sync.WaitGroup
	for i, id := range players {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = game.Settle(h.ctx, id)
		}(i, id)
	}
	wg.Wait()

	settled, refused := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ErrMatchNotLive):
			refused++
			id := players[i]
			assert.Equal(t, int64(500), h.balance(t, id))
			assert.Empty(t, h.records(t, id))
			sess, ok := h.sessions.Get(id)
			require.True(t, ok)
			assert.True(t, sess.HasPrediction())
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, refused)

	m, err := h.store.Matches().GetByID(h.ctx, h.match.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, m.Status)
	assert.Equal(t, 6, m.BallsBowled)
	assert.Equal(t, "0.6", m.BallLabel())
}
