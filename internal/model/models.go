// Package model defines the data models for the cricket prediction bot.
package model

import (
	"fmt"
	"time"
)

// User represents a player account.
type User struct {
	ID          int64     `db:"id"`
	DisplayName string    `db:"display_name"`
	Balance     int64     `db:"balance"`
	Wins        int64     `db:"wins"`
	Losses      int64     `db:"losses"`
	LastActive  time.Time `db:"last_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// WinRate returns wins as a percentage of settled predictions.
func (u *User) WinRate() float64 {
	total := u.Wins + u.Losses
	if total == 0 {
		return 0
	}
	return float64(u.Wins) * 100 / float64(total)
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

// Match statuses.
const (
	MatchPending   MatchStatus = "pending"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
	MatchPaused    MatchStatus = "paused"
)

// Match is a single cricket contest.
type Match struct {
	ID             int64       `db:"id"`
	Name           string      `db:"name"`
	TeamA          string      `db:"team_a"`
	TeamB          string      `db:"team_b"`
	Status         MatchStatus `db:"status"`
	TotalOvers     int         `db:"total_overs"`
	CurrentOver    int         `db:"current_over"`
	CurrentBall    int         `db:"current_ball"`
	Score          int         `db:"score"`
	Wickets        int         `db:"wickets"`
	BallsBowled    int         `db:"balls_bowled"`
	RunRate        float64     `db:"run_rate"`
	LastBallResult *string     `db:"last_ball_result"`
	StartedAt      *time.Time  `db:"started_at"`
	EndedAt        *time.Time  `db:"ended_at"`
	CreatedAt      time.Time   `db:"created_at"`
	LastUpdated    time.Time   `db:"last_updated"`
}

// BallLabel returns the "over.ball" label of the last ball bowled.
func (m *Match) BallLabel() string {
	return BallLabel(m.CurrentOver, m.CurrentBall)
}

// BallLabel formats an over/ball pair.
func BallLabel(over, ball int) string {
	return fmt.Sprintf("%d.%d", over, ball)
}

// BallState is the match state after one ball has been applied.
type BallState struct {
	MatchID   int64
	Over      int
	Ball      int
	Score     int
	Wickets   int
	RunRate   float64
	Completed bool
}

// Label returns the "over.ball" label of the ball.
func (s *BallState) Label() string {
	return BallLabel(s.Over, s.Ball)
}

// Prediction is an immutable record of one settled prediction.
type Prediction struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	MatchID      int64     `db:"match_id"`
	BallOver     int       `db:"ball_over"`
	BallNumber   int       `db:"ball_number"`
	BallLabel    string    `db:"ball_label"`
	Category     string    `db:"category"`
	ActualResult string    `db:"actual_result"`
	Stake        int64     `db:"stake"`
	Winnings     int64     `db:"winnings"`
	IsWinner     bool      `db:"is_winner"`
	CreatedAt    time.Time `db:"created_at"`
}

// Net returns the balance change caused by the prediction.
func (p *Prediction) Net() int64 {
	return p.Winnings - p.Stake
}

// PredictionStats aggregates a user's prediction history.
type PredictionStats struct {
	Total      int64 `db:"total"`
	Wins       int64 `db:"wins"`
	TotalStake int64 `db:"total_stake"`
	TotalWon   int64 `db:"total_won"`
}

// ROI returns the return on stake as a percentage.
func (s *PredictionStats) ROI() float64 {
	if s.TotalStake == 0 {
		return 0
	}
	return float64(s.TotalWon-s.TotalStake) * 100 / float64(s.TotalStake)
}

// PredictorRank is a leaderboard row for a single match.
type PredictorRank struct {
	UserID      int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
	Predictions int64  `db:"predictions"`
	Wins        int64  `db:"wins"`
	Net         int64  `db:"net"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial    = "initial"     // Initial balance on account creation
	TxTypeStake      = "stake"       // Stake debited for a prediction
	TxTypePayout     = "payout"      // Winnings credited for a prediction
	TxTypeAdminAdd   = "admin_add"   // Admin added coins
	TxTypeAdminReset = "admin_reset" // Admin reset coins to the initial amount
)
