// Package repository tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container, applies the schema and returns
// a connection pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func newLiveMatch(t *testing.T, ctx context.Context, repo *MatchRepository, overs int) *model.Match {
	m, err := repo.Create(ctx, &model.Match{
		Name:       "IND vs AUS",
		TeamA:      "India",
		TeamB:      "Australia",
		Status:     model.MatchLive,
		TotalOvers: overs,
	})
	require.NoError(t, err)
	return m
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, "virat", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.ID)
	assert.Equal(t, "virat", user.DisplayName)
	assert.Equal(t, int64(1000), user.Balance)
	assert.Zero(t, user.Wins)
	assert.Zero(t, user.Losses)

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, user.DisplayName, got.DisplayName)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.Create(ctx, 12345, "again", 1000)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUserRepository_Touch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "old", 1000)
	require.NoError(t, err)

	require.NoError(t, repo.Touch(ctx, 1, "new"))
	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", user.DisplayName)

	require.NoError(t, repo.Touch(ctx, 1, ""))
	user, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", user.DisplayName)

	assert.ErrorIs(t, repo.Touch(ctx, 2, "ghost"), store.ErrNotFound)
}

func TestUserRepository_Debit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	user, err := repo.Debit(ctx, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), user.Balance)

	_, err = repo.Debit(ctx, 1, 50)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	user, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40), user.Balance)

	_, err = repo.Debit(ctx, 2, 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, 1, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)
}

func TestUserRepository_ApplyResultAndBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	user, err := repo.ApplyResult(ctx, 1, 30, true)
	require.NoError(t, err)
	assert.Equal(t, int64(130), user.Balance)
	assert.Equal(t, int64(1), user.Wins)
	assert.Equal(t, int64(0), user.Losses)

	user, err = repo.ApplyResult(ctx, 1, 0, false)
	require.NoError(t, err)
	assert.Equal(t, int64(130), user.Balance)
	assert.Equal(t, int64(1), user.Losses)

	_, err = repo.UpdateBalance(ctx, 1, -200)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	user, err = repo.SetBalance(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance)

	_, err = repo.ApplyResult(ctx, 2, 10, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_TopAndActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	for i, balance := range []int64{500, 1500, 1000} {
		_, err := repo.Create(ctx, int64(i+1), "p", balance)
		require.NoError(t, err)
	}

	top, err := repo.TopByBalance(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].ID)
	assert.Equal(t, int64(3), top[1].ID)

	ids, err := repo.ActiveSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = repo.ActiveSince(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// ============================================================================
// MatchRepository Tests
// ============================================================================

func TestMatchRepository_SingleLiveMatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	first := newLiveMatch(t, ctx, repo, 20)
	assert.Equal(t, model.MatchLive, first.Status)
	assert.NotNil(t, first.StartedAt)
	assert.Equal(t, 0, first.CurrentOver)
	assert.Equal(t, 0, first.CurrentBall)

	_, err := repo.Create(ctx, &model.Match{Name: "second", Status: model.MatchLive, TotalOvers: 20})
	assert.ErrorIs(t, err, store.ErrConflict)

	live, err := repo.GetLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, live.ID)

	closed, err := repo.CompleteLive(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, model.MatchCompleted, closed[0].Status)
	assert.NotNil(t, closed[0].EndedAt)

	_, err = repo.GetLive(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMatchRepository_Transition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	m := newLiveMatch(t, ctx, repo, 20)

	paused, err := repo.Transition(ctx, m.ID, model.MatchLive, model.MatchPaused)
	require.NoError(t, err)
	assert.Equal(t, model.MatchPaused, paused.Status)

	_, err = repo.Transition(ctx, m.ID, model.MatchLive, model.MatchCompleted)
	assert.ErrorIs(t, err, store.ErrNotFound)

	resumed, err := repo.Transition(ctx, m.ID, model.MatchPaused, model.MatchLive)
	require.NoError(t, err)
	assert.Equal(t, model.MatchLive, resumed.Status)
	assert.Equal(t, m.StartedAt.Unix(), resumed.StartedAt.Unix())
}

func TestMatchRepository_AdvanceWrapsOver(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	m := newLiveMatch(t, ctx, repo, 20)

	var state *model.BallState
	var err error
	for i := 0; i < 24; i++ {
		state, err = repo.Advance(ctx, m.ID, store.BallDelta{Runs: 1, Result: "1 run"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, state.Ball, 1)
		assert.LessOrEqual(t, state.Ball, 6)
	}
	assert.Equal(t, "3.6", state.Label())
	assert.Equal(t, 24, state.Score)

	state, err = repo.Advance(ctx, m.ID, store.BallDelta{Wicket: true, Result: "WICKET"})
	require.NoError(t, err)
	assert.Equal(t, 4, state.Over)
	assert.Equal(t, 1, state.Ball)
	assert.Equal(t, 24, state.Score)
	assert.Equal(t, 1, state.Wickets)
	assert.InDelta(t, 5.76, state.RunRate, 0.001)
	assert.False(t, state.Completed)

	stored, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.BallsBowled)
	require.NotNil(t, stored.LastBallResult)
	assert.Equal(t, "WICKET", *stored.LastBallResult)
}

func TestMatchRepository_AdvanceNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	_, err := repo.Advance(context.Background(), 404, store.BallDelta{Runs: 4})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMatchRepository_AdvanceCompletesInnings(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	m := newLiveMatch(t, ctx, repo, 1)

	for i := 1; i <= 6; i++ {
		state, err := repo.Advance(ctx, m.ID, store.BallDelta{Runs: 0, Result: "Dot ball"})
		require.NoError(t, err)
		assert.Equal(t, i == 6, state.Completed, "ball %d", i)
	}

	stored, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, stored.Status)
	assert.NotNil(t, stored.EndedAt)

	_, err = repo.Advance(ctx, m.ID, store.BallDelta{Runs: 1})
	assert.ErrorIs(t, err, store.ErrMatchNotLive)

	stored, err = repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.BallsBowled)
	assert.Equal(t, 0, stored.Score)
}

func TestMatchRepository_AdvanceRequiresLiveMatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	m := newLiveMatch(t, ctx, repo, 20)
	_, err := repo.Transition(ctx, m.ID, model.MatchLive, model.MatchPaused)
	require.NoError(t, err)

	_, err = repo.Advance(ctx, m.ID, store.BallDelta{Runs: 4})
	assert.ErrorIs(t, err, store.ErrMatchNotLive)

	stored, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.BallsBowled)
	assert.Equal(t, model.MatchPaused, stored.Status)
}

func TestMatchRepository_ConcurrentAdvanceLosesNoUpdate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	ctx := context.Background()

	m := newLiveMatch(t, ctx, repo, 20)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(runs int) {
			defer wg.Done()
			_, err := repo.Advance(ctx, m.ID, store.BallDelta{Runs: runs})
			assert.NoError(t, err)
		}([]int{0, 1, 2, 4, 6}[i%5])
	}
	wg.Wait()

	stored, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.BallsBowled)
	assert.Equal(t, 6*(0+1+2+4+6), stored.Score)
	assert.Equal(t, "4.6", stored.BallLabel())
}

// ============================================================================
// Store transaction Tests
// ============================================================================

func TestStore_InTxRollsBackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(pool)
	ctx := context.Background()

	_, err := s.Users().Create(ctx, 1, "player", 100)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Users().Debit(ctx, 1, 40); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	user, err := s.Users().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.Balance)
}

func TestStore_StartReplacesLiveMatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(pool)
	ctx := context.Background()

	old := newLiveMatch(t, ctx, NewMatchRepository(pool), 20)

	var created *model.Match
	err := s.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Matches().CompleteLive(ctx); err != nil {
			return err
		}
		var err error
		created, err = tx.Matches().Create(ctx, &model.Match{Name: "new", Status: model.MatchLive, TotalOvers: 20})
		return err
	})
	require.NoError(t, err)

	prev, err := s.Matches().GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, prev.Status)
	require.NotNil(t, prev.EndedAt)

	live, err := s.Matches().GetLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, live.ID)
}

// ============================================================================
// PredictionRepository and TransactionRepository Tests
// ============================================================================

func TestPredictionRepository_HistoryAndStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(pool)
	ctx := context.Background()

	_, err := s.Users().Create(ctx, 1, "alice", 1000)
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, 2, "bob", 1000)
	require.NoError(t, err)
	m := newLiveMatch(t, ctx, NewMatchRepository(pool), 20)

	records := []*model.Prediction{
		{UserID: 1, MatchID: m.ID, BallOver: 0, BallNumber: 1, BallLabel: "0.1", Category: "6_runs", ActualResult: "6 runs", Stake: 10, Winnings: 30, IsWinner: true},
		{UserID: 1, MatchID: m.ID, BallOver: 0, BallNumber: 2, BallLabel: "0.2", Category: "wicket", ActualResult: "Dot ball", Stake: 50},
		{UserID: 2, MatchID: m.ID, BallOver: 0, BallNumber: 3, BallLabel: "0.3", Category: "dot_ball", ActualResult: "Dot ball", Stake: 10, Winnings: 18, IsWinner: true},
	}
	for _, p := range records {
		id, err := s.Predictions().Create(ctx, p)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	history, err := s.Predictions().ListByUser(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "0.2", history[0].BallLabel)
	assert.Equal(t, "0.1", history[1].BallLabel)

	stats, err := s.Predictions().StatsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Wins)
	assert.Equal(t, int64(60), stats.TotalStake)
	assert.Equal(t, int64(30), stats.TotalWon)

	top, err := s.Predictions().TopPredictors(ctx, m.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
	assert.Equal(t, int64(8), top[0].Net)
	assert.Equal(t, "alice", top[1].DisplayName)
	assert.Equal(t, int64(-30), top[1].Net)

	empty, err := s.Predictions().StatsByUser(ctx, 2_000)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestTransactionRepository_Ledger(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(pool)
	ctx := context.Background()

	_, err := s.Users().Create(ctx, 1, "alice", 1000)
	require.NoError(t, err)

	desc := "stake on 6_runs"
	_, err = s.Ledger().Create(ctx, 1, -10, model.TxTypeStake, &desc)
	require.NoError(t, err)
	_, err = s.Ledger().Create(ctx, 1, 30, model.TxTypePayout, nil)
	require.NoError(t, err)

	txs, err := s.Ledger().ListByUser(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, model.TxTypePayout, txs[0].Type)
	assert.Nil(t, txs[0].Description)
	assert.Equal(t, int64(-10), txs[1].Amount)
}

// ============================================================================
// Error mapping Tests
// ============================================================================

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		notWant error
	}{
		{
			name: "balance check",
			err:  &pgconn.PgError{Code: codeCheckViolation, ConstraintName: constraintUserBalance},
			want: store.ErrInsufficientBalance,
		},
		{
			name:    "match check",
			err:     &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "matches_current_ball_check"},
			notWant: store.ErrInsufficientBalance,
		},
		{
			name: "serialization failure",
			err:  &pgconn.PgError{Code: codeSerializationFailure},
			want: store.ErrConflict,
		},
		{
			name: "no rows",
			err:  pgx.ErrNoRows,
			want: store.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr("test", tt.err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.notWant != nil {
				assert.NotErrorIs(t, err, tt.notWant)
				assert.ErrorAs(t, err, new(*pgconn.PgError))
			}
		})
	}
}

func TestMatchRepository_CheckViolationIsNotInsufficientBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMatchRepository(pool)
	_, err := repo.Create(context.Background(), &model.Match{Name: "bad", Status: model.MatchPending, TotalOvers: 0})
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrInsufficientBalance)
}
