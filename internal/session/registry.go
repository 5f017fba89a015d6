// Package session keeps each player's in-progress match state in memory.
// Sessions are process-local and are lost on restart; players rejoin.
package session

import (
	"errors"
	"sync"
)

// Session errors.
var (
	ErrInvalidStake = errors.New("stake must be positive")
	ErrNotJoined    = errors.New("user has not joined a match")
)

// Session is a player's join state for one match.
type Session struct {
	UserID  int64
	MatchID int64
	Stake   int64
	// Prediction is the pending category, empty when none is selected.
	Prediction string
}

// HasPrediction reports whether a prediction is waiting to be settled.
func (s Session) HasPrediction() bool {
	return s.Prediction != ""
}

// Registry maps users to their sessions.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[int64]*Session
	defaultStake int64
}

// NewRegistry creates a registry whose sessions start at defaultStake.
func NewRegistry(defaultStake int64) *Registry {
	if defaultStake <= 0 {
		defaultStake = 10
	}
	return &Registry{
		sessions:     make(map[int64]*Session),
		defaultStake: defaultStake,
	}
}

// DefaultStake returns the stake new sessions start with.
func (r *Registry) DefaultStake() int64 {
	return r.defaultStake
}

// Join binds the user to a match. Rejoining the same match keeps the current
// stake and prediction; joining a different match starts a fresh session.
func (r *Registry) Join(userID, matchID int64) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok && s.MatchID == matchID {
		return *s
	}

	s := &Session{UserID: userID, MatchID: matchID, Stake: r.defaultStake}
	r.sessions[userID] = s
	return *s
}

// SetStake changes the stake for the user's next prediction.
func (r *Registry) SetStake(userID, amount int64) (Session, error) {
	if amount <= 0 {
		return Session{}, ErrInvalidStake
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, ErrNotJoined
	}
	s.Stake = amount
	return *s, nil
}

// SetPrediction records the user's pending prediction category.
func (r *Registry) SetPrediction(userID int64, category string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, ErrNotJoined
	}
	s.Prediction = category
	return *s, nil
}

// Get returns a copy of the user's session.
func (r *Registry) Get(userID int64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ClearPrediction removes the pending prediction, keeping stake and match.
func (r *Registry) ClearPrediction(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		s.Prediction = ""
	}
}

// Leave discards the user's session.
func (r *Registry) Leave(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[userID]
	delete(r.sessions, userID)
	return ok
}

// EndMatch discards every session bound to matchID and returns how many
// were removed.
func (r *Registry) EndMatch(matchID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, s := range r.sessions {
		if s.MatchID == matchID {
			delete(r.sessions, userID)
			removed++
		}
	}
	return removed
}

// Count returns the number of sessions for matchID.
func (r *Registry) Count(matchID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.MatchID == matchID {
			n++
		}
	}
	return n
}
