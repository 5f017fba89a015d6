package repository

import (
	"context"
	"fmt"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

// PredictionRepository handles prediction record persistence.
// Records are insert-only.
type PredictionRepository struct {
	db DBTX
}

var _ store.PredictionStore = (*PredictionRepository)(nil)

// NewPredictionRepository creates a new PredictionRepository instance.
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Create inserts a settled prediction and returns its ID.
func (r *PredictionRepository) Create(ctx context.Context, p *model.Prediction) (int64, error) {
	const query = `
		INSERT INTO predictions (user_id, match_id, ball_over, ball_number, ball_label, category,
			actual_result, stake, winnings, is_winner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		p.UserID,
		p.MatchID,
		p.BallOver,
		p.BallNumber,
		p.BallLabel,
		p.Category,
		p.ActualResult,
		p.Stake,
		p.Winnings,
		p.IsWinner,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("create prediction", err)
	}
	return id, nil
}

// ListByUser retrieves a user's most recent predictions, newest first.
func (r *PredictionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Prediction, error) {
	const query = `
		SELECT id, user_id, match_id, ball_over, ball_number, ball_label, category,
			actual_result, stake, winnings, is_winner, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*model.Prediction
	for rows.Next() {
		var p model.Prediction
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.MatchID,
			&p.BallOver,
			&p.BallNumber,
			&p.BallLabel,
			&p.Category,
			&p.ActualResult,
			&p.Stake,
			&p.Winnings,
			&p.IsWinner,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return predictions, nil
}

// StatsByUser aggregates a user's whole prediction history.
func (r *PredictionRepository) StatsByUser(ctx context.Context, userID int64) (*model.PredictionStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_winner),
		       COALESCE(SUM(stake), 0)::BIGINT,
		       COALESCE(SUM(winnings), 0)::BIGINT
		FROM predictions
		WHERE user_id = $1
	`

	var stats model.PredictionStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Wins,
		&stats.TotalStake,
		&stats.TotalWon,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction stats: %w", err)
	}
	return &stats, nil
}

// TopPredictors ranks players of a match by net winnings.
func (r *PredictionRepository) TopPredictors(ctx context.Context, matchID int64, limit int) ([]*model.PredictorRank, error) {
	const query = `
		SELECT p.user_id, u.display_name,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE p.is_winner),
		       COALESCE(SUM(p.winnings - p.stake), 0)::BIGINT AS net
		FROM predictions p
		JOIN users u ON u.id = p.user_id
		WHERE p.match_id = $1
		GROUP BY p.user_id, u.display_name
		ORDER BY net DESC, p.user_id ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top predictors: %w", err)
	}
	defer rows.Close()

	var ranks []*model.PredictorRank
	for rows.Next() {
		var rank model.PredictorRank
		err := rows.Scan(
			&rank.UserID,
			&rank.DisplayName,
			&rank.Predictions,
			&rank.Wins,
			&rank.Net,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan predictor rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictor ranks: %w", err)
	}

	return ranks, nil
}
