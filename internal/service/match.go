package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/session"
	"cricket-prediction-bot/internal/store"
)

// MaxOvers caps the innings length an admin can start.
const MaxOvers = 50

// StartMatchRequest describes a match to start.
type StartMatchRequest struct {
	Name       string
	TeamA      string
	TeamB      string
	TotalOvers int
}

// MatchService handles match administration.
type MatchService struct {
	store        store.Store
	sessions     *session.Registry
	defaultOvers int
}

// NewMatchService creates a new MatchService instance.
func NewMatchService(st store.Store, sessions *session.Registry, defaultOvers int) *MatchService {
	if defaultOvers <= 0 {
		defaultOvers = 20
	}
	return &MatchService{
		store:        st,
		sessions:     sessions,
		defaultOvers: defaultOvers,
	}
}

// Start completes any live match and starts a new one, in one transaction.
// It returns the new match and the matches it superseded.
func (s *MatchService) Start(ctx context.Context, adminID int64, req StartMatchRequest) (*model.Match, []*model.Match, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, nil, fmt.Errorf("%w: match name is required", ErrInvalidMatch)
	}
	if req.TotalOvers == 0 {
		req.TotalOvers = s.defaultOvers
	}
	if req.TotalOvers < 0 || req.TotalOvers > MaxOvers {
		return nil, nil, fmt.Errorf("%w: overs must be between 1 and %d", ErrInvalidMatch, MaxOvers)
	}

	var (
		created    *model.Match
		superseded []*model.Match
	)
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		superseded, err = tx.Matches().CompleteLive(ctx)
		if err != nil {
			return err
		}
		created, err = tx.Matches().Create(ctx, &model.Match{
			Name:       req.Name,
			TeamA:      strings.TrimSpace(req.TeamA),
			TeamB:      strings.TrimSpace(req.TeamB),
			Status:     model.MatchLive,
			TotalOvers: req.TotalOvers,
		})
		return err
	})
	if err != nil {
		return nil, nil, storeErr("start match", err)
	}

	for _, m := range superseded {
		dropped := s.sessions.EndMatch(m.ID)
		log.Info().
			Int64("match_id", m.ID).
			Int("sessions_dropped", dropped).
			Msg("Match superseded")
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("match_id", created.ID).
		Str("name", created.Name).
		Int("overs", created.TotalOvers).
		Msg("Match started")

	return created, superseded, nil
}

// Stop completes the live match and drops its sessions.
func (s *MatchService) Stop(ctx context.Context) (*model.Match, error) {
	live, err := s.Live(ctx)
	if err != nil {
		return nil, err
	}
	stopped, err := s.store.Matches().Transition(ctx, live.ID, model.MatchLive, model.MatchCompleted)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoLiveMatch
		}
		return nil, storeErr("stop match", err)
	}

	dropped := s.sessions.EndMatch(stopped.ID)
	log.Info().
		Int64("match_id", stopped.ID).
		Int("sessions_dropped", dropped).
		Msg("Match stopped")
	return stopped, nil
}

// Pause moves the live match to paused. Sessions are kept for the resume.
func (s *MatchService) Pause(ctx context.Context) (*model.Match, error) {
	live, err := s.Live(ctx)
	if err != nil {
		return nil, err
	}
	paused, err := s.store.Matches().Transition(ctx, live.ID, model.MatchLive, model.MatchPaused)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoLiveMatch
		}
		return nil, storeErr("pause match", err)
	}
	log.Info().Int64("match_id", paused.ID).Msg("Match paused")
	return paused, nil
}

// Resume moves a paused match back to live. It is refused while another
// match is live.
func (s *MatchService) Resume(ctx context.Context, matchID int64) (*model.Match, error) {
	if live, err := s.store.Matches().GetLive(ctx); err == nil {
		if live.ID == matchID {
			return live, nil
		}
		return nil, ErrMatchAlreadyLive
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr("get live match", err)
	}

	resumed, err := s.store.Matches().Transition(ctx, matchID, model.MatchPaused, model.MatchLive)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			if _, gerr := s.store.Matches().GetByID(ctx, matchID); gerr == nil {
				return nil, ErrMatchNotLive
			}
			return nil, ErrNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, ErrMatchAlreadyLive
		default:
			return nil, storeErr("resume match", err)
		}
	}
	log.Info().Int64("match_id", resumed.ID).Msg("Match resumed")
	return resumed, nil
}

// Live returns the live match.
func (s *MatchService) Live(ctx context.Context) (*model.Match, error) {
	m, err := s.store.Matches().GetLive(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoLiveMatch
		}
		return nil, storeErr("get live match", err)
	}
	return m, nil
}

// Get returns a match by ID.
func (s *MatchService) Get(ctx context.Context, id int64) (*model.Match, error) {
	m, err := s.store.Matches().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get match", err)
	}
	return m, nil
}

// Leaderboard ranks the players of a match by net winnings.
func (s *MatchService) Leaderboard(ctx context.Context, matchID int64, limit int) ([]*model.PredictorRank, error) {
	ranks, err := s.store.Predictions().TopPredictors(ctx, matchID, limit)
	if err != nil {
		return nil, storeErr("get match leaderboard", err)
	}
	return ranks, nil
}

// Players returns how many users are joined to a match.
func (s *MatchService) Players(matchID int64) int {
	return s.sessions.Count(matchID)
}
