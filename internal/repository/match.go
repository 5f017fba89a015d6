package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

const matchColumns = `id, name, team_a, team_b, status, total_overs, current_over, current_ball,
	score, wickets, balls_bowled, run_rate, last_ball_result, started_at, ended_at, created_at, last_updated`

// maxWickets ends an innings when reached.
const maxWickets = 10

// MatchRepository handles match data persistence.
type MatchRepository struct {
	db DBTX
}

var _ store.MatchStore = (*MatchRepository)(nil)

// NewMatchRepository creates a new MatchRepository instance.
func NewMatchRepository(db DBTX) *MatchRepository {
	return &MatchRepository{db: db}
}

func scanMatch(row scanner) (*model.Match, error) {
	var (
		m      model.Match
		status string
	)
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.TeamA,
		&m.TeamB,
		&status,
		&m.TotalOvers,
		&m.CurrentOver,
		&m.CurrentBall,
		&m.Score,
		&m.Wickets,
		&m.BallsBowled,
		&m.RunRate,
		&m.LastBallResult,
		&m.StartedAt,
		&m.EndedAt,
		&m.CreatedAt,
		&m.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	m.Status = model.MatchStatus(status)
	return &m, nil
}

func collectMatches(rows pgx.Rows) ([]*model.Match, error) {
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// Create inserts a match at over 0, ball 0 with the status set on m.
// Inserting a second live match violates idx_matches_single_live and
// returns store.ErrConflict.
func (r *MatchRepository) Create(ctx context.Context, m *model.Match) (*model.Match, error) {
	const query = `
		INSERT INTO matches (name, team_a, team_b, status, total_overs, started_at, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $4::VARCHAR = 'live' THEN NOW() END, NOW(), NOW())
		RETURNING ` + matchColumns

	status := m.Status
	if status == "" {
		status = model.MatchPending
	}

	created, err := scanMatch(r.db.QueryRow(ctx, query, m.Name, m.TeamA, m.TeamB, string(status), m.TotalOvers))
	if err != nil {
		return nil, wrapErr("create match", err)
	}
	return created, nil
}

// GetByID retrieves a match by ID.
func (r *MatchRepository) GetByID(ctx context.Context, id int64) (*model.Match, error) {
	const query = `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// GetLive retrieves the live match, or store.ErrNotFound if none is live.
func (r *MatchRepository) GetLive(ctx context.Context) (*model.Match, error) {
	const query = `SELECT ` + matchColumns + ` FROM matches WHERE status = 'live' ORDER BY id DESC LIMIT 1`

	m, err := scanMatch(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get live match: %w", err)
	}
	return m, nil
}

// CompleteLive marks every live match completed with an end timestamp.
func (r *MatchRepository) CompleteLive(ctx context.Context) ([]*model.Match, error) {
	const query = `
		UPDATE matches
		SET status = 'completed', ended_at = NOW(), last_updated = NOW()
		WHERE status = 'live'
		RETURNING ` + matchColumns

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("complete live matches", err)
	}
	return collectMatches(rows)
}

// Transition changes a match's status if it is currently from.
func (r *MatchRepository) Transition(ctx context.Context, id int64, from, to model.MatchStatus) (*model.Match, error) {
	const query = `
		UPDATE matches
		SET status = $3::VARCHAR,
		    started_at = COALESCE(started_at, CASE WHEN $3::VARCHAR = 'live' THEN NOW() END),
		    ended_at = CASE WHEN $3::VARCHAR = 'completed' THEN NOW() ELSE ended_at END,
		    last_updated = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + matchColumns

	m, err := scanMatch(r.db.QueryRow(ctx, query, id, string(from), string(to)))
	if err != nil {
		return nil, wrapErr("transition match", err)
	}
	return m, nil
}

// Advance applies one ball as a single UPDATE evaluated by PostgreSQL.
// Every SET expression reads the pre-update row, and the row lock taken by
// the UPDATE serializes concurrent settlements on the same match.
// The ball counter wraps from 6 to 1 and carries into the over. The innings
// is completed when the last ball is bowled or the last wicket falls.
// Only live matches advance.
func (r *MatchRepository) Advance(ctx context.Context, id int64, delta store.BallDelta) (*model.BallState, error) {
	const query = `
		UPDATE matches SET
			current_over = CASE WHEN current_ball >= 6 THEN current_over + 1 ELSE current_over END,
			current_ball = CASE WHEN current_ball >= 6 THEN 1 ELSE current_ball + 1 END,
			score = score + $2,
			wickets = wickets + $3,
			balls_bowled = balls_bowled + 1,
			run_rate = ROUND((score + $2) * 6.0 / (balls_bowled + 1), 2),
			last_ball_result = $4,
			status = CASE
				WHEN balls_bowled + 1 >= total_overs * 6 OR wickets + $3 >= $5 THEN 'completed'
				ELSE status END,
			ended_at = CASE
				WHEN balls_bowled + 1 >= total_overs * 6 OR wickets + $3 >= $5 THEN NOW()
				ELSE ended_at END,
			last_updated = NOW()
		WHERE id = $1 AND status = 'live'
		RETURNING id, current_over, current_ball, score, wickets, run_rate,
			status = 'completed'
	`

	wickets := 0
	if delta.Wicket {
		wickets = 1
	}

	var state model.BallState
	err := r.db.QueryRow(ctx, query, id, delta.Runs, wickets, delta.Result, maxWickets).Scan(
		&state.MatchID,
		&state.Over,
		&state.Ball,
		&state.Score,
		&state.Wickets,
		&state.RunRate,
		&state.Completed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.notLive(ctx, id)
	}
	if err != nil {
		return nil, wrapErr("advance match", err)
	}
	return &state, nil
}

// notLive tells a missing match apart from one that is no longer live.
func (r *MatchRepository) notLive(ctx context.Context, id int64) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM matches WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return wrapErr("check match", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrMatchNotLive
}
