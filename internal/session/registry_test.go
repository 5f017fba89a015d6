package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistry_JoinUsesDefaultStake(t *testing.T) {
	r := NewRegistry(25)

	s := r.Join(1, 7)
	assert.Equal(t, int64(1), s.UserID)
	assert.Equal(t, int64(7), s.MatchID)
	assert.Equal(t, int64(25), s.Stake)
	assert.False(t, s.HasPrediction())

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestRegistry_RejoinKeepsState(t *testing.T) {
	r := NewRegistry(10)
	r.Join(1, 7)
	_, err := r.SetStake(1, 50)
	require.NoError(t, err)
	_, err = r.SetPrediction(1, "6_runs")
	require.NoError(t, err)

	s := r.Join(1, 7)
	assert.Equal(t, int64(50), s.Stake)
	assert.Equal(t, "6_runs", s.Prediction)

	// A different match starts over.
	s = r.Join(1, 8)
	assert.Equal(t, int64(10), s.Stake)
	assert.False(t, s.HasPrediction())
}

func TestRegistry_SetStake(t *testing.T) {
	r := NewRegistry(10)

	_, err := r.SetStake(1, 20)
	assert.ErrorIs(t, err, ErrNotJoined)

	r.Join(1, 7)
	_, err = r.SetStake(1, 0)
	assert.ErrorIs(t, err, ErrInvalidStake)
	_, err = r.SetStake(1, -5)
	assert.ErrorIs(t, err, ErrInvalidStake)

	s, err := r.SetStake(1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Stake)
}

func TestRegistry_SetPredictionRequiresJoin(t *testing.T) {
	r := NewRegistry(10)

	_, err := r.SetPrediction(1, "wicket")
	assert.ErrorIs(t, err, ErrNotJoined)

	r.Join(1, 7)
	s, err := r.SetPrediction(1, "wicket")
	require.NoError(t, err)
	assert.True(t, s.HasPrediction())
}

func TestRegistry_ClearPredictionKeepsStakeAndMatch(t *testing.T) {
	r := NewRegistry(10)
	r.Join(1, 7)
	_, _ = r.SetStake(1, 40)
	_, _ = r.SetPrediction(1, "dot_ball")

	r.ClearPrediction(1)

	s, ok := r.Get(1)
	require.True(t, ok)
	assert.False(t, s.HasPrediction())
	assert.Equal(t, int64(40), s.Stake)
	assert.Equal(t, int64(7), s.MatchID)

	// Clearing an unknown user is a no-op.
	r.ClearPrediction(99)
}

func TestRegistry_LeaveAndEndMatch(t *testing.T) {
	r := NewRegistry(10)
	r.Join(1, 7)
	r.Join(2, 7)
	r.Join(3, 8)

	assert.Equal(t, 2, r.Count(7))
	assert.True(t, r.Leave(1))
	assert.False(t, r.Leave(1))
	assert.Equal(t, 1, r.Count(7))

	assert.Equal(t, 1, r.EndMatch(7))
	_, ok := r.Get(2)
	assert.False(t, ok)
	_, ok = r.Get(3)
	assert.True(t, ok)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(10)
	r.Join(1, 7)

	s, _ := r.Get(1)
	s.Stake = 999

	got, _ := r.Get(1)
	assert.Equal(t, int64(10), got.Stake)
}

func TestRegistry_ConcurrentUsers(t *testing.T) {
	r := NewRegistry(10)

	var wg sync.WaitGroup
	for i := int64(1); i <= 100; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			r.Join(userID, 1)
			_, _ = r.SetStake(userID, userID)
			_, _ = r.SetPrediction(userID, "4_runs")
			r.ClearPrediction(userID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Count(1))
	for i := int64(1); i <= 100; i++ {
		s, ok := r.Get(i)
		require.True(t, ok)
		assert.Equal(t, i, s.Stake)
		assert.False(t, s.HasPrediction())
	}
}

// TestSessionStateMachineProperty drives a random action sequence and checks
// the registry against a simple model.
func TestSessionStateMachineProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry(10)

		type modelSession struct {
			match      int64
			stake      int64
			prediction string
		}
		sessions := map[int64]*modelSession{}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.Int64Range(1, 3).Draw(t, "user")
			switch rapid.IntRange(0, 4).Draw(t, "action") {
			case 0:
				match := rapid.Int64Range(1, 2).Draw(t, "match")
				r.Join(user, match)
				if s, ok := sessions[user]; !ok || s.match != match {
					sessions[user] = &modelSession{match: match, stake: 10}
				}
			case 1:
				amount := rapid.Int64Range(-5, 500).Draw(t, "amount")
				_, err := r.SetStake(user, amount)
				s, ok := sessions[user]
				switch {
				case amount <= 0:
					if err != ErrInvalidStake {
						t.Fatalf("expected ErrInvalidStake, got %v", err)
					}
				case !ok:
					if err != ErrNotJoined {
						t.Fatalf("expected ErrNotJoined, got %v", err)
					}
				default:
					s.stake = amount
				}
			case 2:
				cat := rapid.SampledFrom([]string{"2_runs", "wicket", "dot_ball"}).Draw(t, "category")
				_, err := r.SetPrediction(user, cat)
				if s, ok := sessions[user]; ok {
					s.prediction = cat
				} else if err != ErrNotJoined {
					t.Fatalf("expected ErrNotJoined, got %v", err)
				}
			case 3:
				r.ClearPrediction(user)
				if s, ok := sessions[user]; ok {
					s.prediction = ""
				}
			case 4:
				r.Leave(user)
				delete(sessions, user)
			}

			for u := int64(1); u <= 3; u++ {
				got, ok := r.Get(u)
				want, wantOK := sessions[u]
				if ok != wantOK {
					t.Fatalf("user %d: present=%v want %v", u, ok, wantOK)
				}
				if !ok {
					continue
				}
				if got.MatchID != want.match || got.Stake != want.stake || got.Prediction != want.prediction {
					t.Fatalf("user %d: got %+v want %+v", u, got, *want)
				}
				if got.Stake <= 0 {
					t.Fatalf("user %d: non-positive stake %d", u, got.Stake)
				}
			}
		}
	})
}
