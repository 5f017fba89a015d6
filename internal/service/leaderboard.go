package service

import (
	"context"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

// DefaultLeaderboardSize is the number of rows shown on a leaderboard.
const DefaultLeaderboardSize = 10

// LeaderboardService handles ranking and leaderboard operations.
type LeaderboardService struct {
	store store.Store
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(st store.Store) *LeaderboardService {
	return &LeaderboardService{store: st}
}

// TopByBalance retrieves the richest users.
func (s *LeaderboardService) TopByBalance(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	users, err := s.store.Users().TopByBalance(ctx, limit)
	if err != nil {
		return nil, storeErr("get top users", err)
	}
	return users, nil
}

// TopPredictors ranks the players of a match by net winnings.
func (s *LeaderboardService) TopPredictors(ctx context.Context, matchID int64, limit int) ([]*model.PredictorRank, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	ranks, err := s.store.Predictions().TopPredictors(ctx, matchID, limit)
	if err != nil {
		return nil, storeErr("get top predictors", err)
	}
	return ranks, nil
}
