package service

import (
	"context"
	"errors"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/session"
	"cricket-prediction-bot/internal/store"
)

// GameService is the entry point the chat layer uses to play: join a live
// match, pick a stake and a prediction, and confirm.
type GameService struct {
	store    store.Store
	sessions *session.Registry
	settler  *Settler
}

// NewGameService creates a new GameService instance.
func NewGameService(st store.Store, sessions *session.Registry, settler *Settler) *GameService {
	return &GameService{
		store:    st,
		sessions: sessions,
		settler:  settler,
	}
}

// Join binds the user to a live match. Rejoining the same match keeps the
// current stake and prediction.
func (s *GameService) Join(ctx context.Context, userID, matchID int64) (session.Session, *model.Match, error) {
	match, err := s.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return session.Session{}, nil, storeErr("get match", err)
	}
	if match.Status != model.MatchLive {
		return session.Session{}, match, ErrMatchNotLive
	}
	return s.sessions.Join(userID, match.ID), match, nil
}

// JoinLive joins the current live match.
func (s *GameService) JoinLive(ctx context.Context, userID int64) (session.Session, *model.Match, error) {
	match, err := s.store.Matches().GetLive(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Session{}, nil, ErrNoLiveMatch
		}
		return session.Session{}, nil, storeErr("get live match", err)
	}
	return s.sessions.Join(userID, match.ID), match, nil
}

// SetStake changes the user's stake. When a prediction is already chosen the
// stake must fit that prediction's bounds.
func (s *GameService) SetStake(userID, amount int64) (session.Session, error) {
	if amount <= 0 {
		return session.Session{}, ErrInvalidStake
	}
	current, ok := s.sessions.Get(userID)
	if !ok {
		return session.Session{}, ErrNotJoined
	}
	if current.HasPrediction() {
		if p, ok := cricket.Lookup(cricket.Category(current.Prediction)); ok && !p.AllowsStake(amount) {
			return current, ErrStakeOutOfRange
		}
	}

	updated, err := s.sessions.SetStake(userID, amount)
	return updated, sessionErr(err)
}

// SetPrediction chooses the category to bet on. The current stake must fit
// the category's bounds.
func (s *GameService) SetPrediction(userID int64, category string) (session.Session, error) {
	p, ok := cricket.Lookup(cricket.Category(category))
	if !ok {
		return session.Session{}, ErrUnknownCategory
	}
	current, ok := s.sessions.Get(userID)
	if !ok {
		return session.Session{}, ErrNotJoined
	}
	if !p.AllowsStake(current.Stake) {
		return current, ErrStakeOutOfRange
	}

	updated, err := s.sessions.SetPrediction(userID, string(p.Category))
	return updated, sessionErr(err)
}

// Settle settles the user's pending prediction. Paused and finished matches
// take no predictions, and a confirm that arrives while the previous one is
// still settling gets ErrSettleInProgress.
func (s *GameService) Settle(ctx context.Context, userID int64) (*SettlementResult, error) {
	if sess, ok := s.sessions.Get(userID); ok {
		match, err := s.store.Matches().GetByID(ctx, sess.MatchID)
		if err != nil {
			return nil, storeErr("get match", err)
		}
		if match.Status != model.MatchLive {
			return nil, ErrMatchNotLive
		}
	}
	return s.settler.TrySettle(ctx, userID)
}

// Leave drops the user's session. It reports whether one existed.
func (s *GameService) Leave(userID int64) bool {
	return s.sessions.Leave(userID)
}

// Session returns a copy of the user's session.
func (s *GameService) Session(userID int64) (session.Session, bool) {
	return s.sessions.Get(userID)
}

func sessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotJoined):
		return ErrNotJoined
	case errors.Is(err, session.ErrInvalidStake):
		return ErrInvalidStake
	default:
		return err
	}
}
