// Package memstore is an in-memory implementation of store.Store.
//
// Every operation and every InTx call is serialized by one mutex, which gives
// the same isolation the PostgreSQL store gets from row locks. InTx restores a
// snapshot when fn fails. Faults can be injected per operation to exercise
// rollback and retry paths.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/store"
)

// Operation names accepted by FailOn and FailTimes.
const (
	OpUserDebit        = "users.debit"
	OpUserApplyResult  = "users.apply_result"
	OpUserUpdate       = "users.update_balance"
	OpMatchAdvance     = "matches.advance"
	OpMatchCreate      = "matches.create"
	OpPredictionCreate = "predictions.create"
	OpLedgerCreate     = "ledger.create"
	OpCommit           = "commit"
)

const maxWickets = 10

type fault struct {
	err       error
	remaining int // negative means forever
}

type state struct {
	users       map[int64]model.User
	matches     map[int64]model.Match
	predictions []model.Prediction
	ledger      []model.Transaction
	nextMatch   int64
	nextPred    int64
	nextTx      int64
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]model.User, len(s.users)),
		matches:     make(map[int64]model.Match, len(s.matches)),
		predictions: append([]model.Prediction(nil), s.predictions...),
		ledger:      append([]model.Transaction(nil), s.ledger...),
		nextMatch:   s.nextMatch,
		nextPred:    s.nextPred,
		nextTx:      s.nextTx,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	return c
}

type db struct {
	mu     sync.Mutex
	data   *state
	faults map[string]*fault
	now    func() time.Time
}

// Store is an in-memory store.Store.
type Store struct {
	db   *db
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{db: &db{
		data: &state{
			users:   make(map[int64]model.User),
			matches: make(map[int64]model.Match),
		},
		faults: make(map[string]*fault),
		now:    time.Now,
	}}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.now = now
}

// FailOn makes every call of op return err until ClearFaults.
func (s *Store) FailOn(op string, err error) {
	s.FailTimes(op, err, -1)
}

// FailTimes makes the next n calls of op return err.
func (s *Store) FailTimes(op string, err error, n int) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.faults[op] = &fault{err: err, remaining: n}
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.faults = make(map[string]*fault)
}

// Users returns the user store.
func (s *Store) Users() store.UserStore { return &users{s} }

// Matches returns the match store.
func (s *Store) Matches() store.MatchStore { return &matches{s} }

// Predictions returns the prediction store.
func (s *Store) Predictions() store.PredictionStore { return &predictions{s} }

// Ledger returns the ledger store.
func (s *Store) Ledger() store.LedgerStore { return &ledger{s} }

// InTx runs fn with exclusive access and rolls back to a snapshot if fn
// or the commit fault fails.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.data.clone()
	err := fn(&Store{db: s.db, inTx: true})
	if err == nil {
		err = s.db.fault(OpCommit)
	}
	if err != nil {
		s.db.data = snapshot
		return err
	}
	return nil
}

// lock acquires the mutex unless the caller is already inside InTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

// fault must be called with mu held.
func (d *db) fault(op string) error {
	f, ok := d.faults[op]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

type users struct{ s *Store }

func (u *users) Create(_ context.Context, id int64, displayName string, balance int64) (*model.User, error) {
	defer u.s.lock()()
	d := u.s.db
	if _, ok := d.data.users[id]; ok {
		return nil, store.ErrConflict
	}
	now := d.now()
	user := model.User{
		ID:          id,
		DisplayName: displayName,
		Balance:     balance,
		LastActive:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.data.users[id] = user
	return &user, nil
}

func (u *users) GetByID(_ context.Context, id int64) (*model.User, error) {
	defer u.s.lock()()
	user, ok := u.s.db.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (u *users) Touch(_ context.Context, id int64, displayName string) error {
	defer u.s.lock()()
	d := u.s.db
	user, ok := d.data.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if displayName != "" {
		user.DisplayName = displayName
	}
	user.LastActive = d.now()
	user.UpdatedAt = user.LastActive
	d.data.users[id] = user
	return nil
}

func (u *users) UpdateBalance(_ context.Context, id int64, delta int64) (*model.User, error) {
	defer u.s.lock()()
	d := u.s.db
	if err := d.fault(OpUserUpdate); err != nil {
		return nil, err
	}
	user, ok := d.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if user.Balance+delta < 0 {
		return nil, store.ErrInsufficientBalance
	}
	user.Balance += delta
	user.UpdatedAt = d.now()
	d.data.users[id] = user
	return &user, nil
}

func (u *users) Debit(_ context.Context, id int64, amount int64) (*model.User, error) {
	defer u.s.lock()()
	d := u.s.db
	if err := d.fault(OpUserDebit); err != nil {
		return nil, err
	}
	user, ok := d.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if user.Balance < amount {
		return nil, store.ErrInsufficientBalance
	}
	user.Balance -= amount
	user.UpdatedAt = d.now()
	d.data.users[id] = user
	return &user, nil
}

func (u *users) ApplyResult(_ context.Context, id int64, credit int64, won bool) (*model.User, error) {
	defer u.s.lock()()
	d := u.s.db
	if err := d.fault(OpUserApplyResult); err != nil {
		return nil, err
	}
	user, ok := d.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	user.Balance += credit
	if won {
		user.Wins++
	} else {
		user.Losses++
	}
	user.LastActive = d.now()
	user.UpdatedAt = user.LastActive
	d.data.users[id] = user
	return &user, nil
}

func (u *users) SetBalance(_ context.Context, id int64, balance int64) (*model.User, error) {
	defer u.s.lock()()
	d := u.s.db
	user, ok := d.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if balance < 0 {
		return nil, store.ErrInsufficientBalance
	}
	user.Balance = balance
	user.UpdatedAt = d.now()
	d.data.users[id] = user
	return &user, nil
}

func (u *users) TopByBalance(_ context.Context, limit int) ([]*model.User, error) {
	defer u.s.lock()()
	all := make([]*model.User, 0, len(u.s.db.data.users))
	for _, user := range u.s.db.data.users {
		user := user
		all = append(all, &user)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Balance != all[j].Balance {
			return all[i].Balance > all[j].Balance
		}
		return all[i].ID < all[j].ID
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (u *users) ActiveSince(_ context.Context, since time.Time) ([]int64, error) {
	defer u.s.lock()()
	ids := []int64{}
	for id, user := range u.s.db.data.users {
		if !user.LastActive.Before(since) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type matches struct{ s *Store }

func (m *matches) Create(_ context.Context, match *model.Match) (*model.Match, error) {
	defer m.s.lock()()
	d := m.s.db
	if err := d.fault(OpMatchCreate); err != nil {
		return nil, err
	}
	status := match.Status
	if status == "" {
		status = model.MatchPending
	}
	if status == model.MatchLive {
		for _, existing := range d.data.matches {
			if existing.Status == model.MatchLive {
				return nil, store.ErrConflict
			}
		}
	}

	now := d.now()
	d.data.nextMatch++
	created := model.Match{
		ID:          d.data.nextMatch,
		Name:        match.Name,
		TeamA:       match.TeamA,
		TeamB:       match.TeamB,
		Status:      status,
		TotalOvers:  match.TotalOvers,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if status == model.MatchLive {
		created.StartedAt = &now
	}
	d.data.matches[created.ID] = created
	return &created, nil
}

func (m *matches) GetByID(_ context.Context, id int64) (*model.Match, error) {
	defer m.s.lock()()
	match, ok := m.s.db.data.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &match, nil
}

func (m *matches) GetLive(_ context.Context) (*model.Match, error) {
	defer m.s.lock()()
	var live *model.Match
	for _, match := range m.s.db.data.matches {
		if match.Status != model.MatchLive {
			continue
		}
		if live == nil || match.ID > live.ID {
			match := match
			live = &match
		}
	}
	if live == nil {
		return nil, store.ErrNotFound
	}
	return live, nil
}

func (m *matches) CompleteLive(_ context.Context) ([]*model.Match, error) {
	defer m.s.lock()()
	d := m.s.db
	now := d.now()
	var closed []*model.Match
	for id, match := range d.data.matches {
		if match.Status != model.MatchLive {
			continue
		}
		match.Status = model.MatchCompleted
		match.EndedAt = &now
		match.LastUpdated = now
		d.data.matches[id] = match
		closed = append(closed, &match)
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed, nil
}

func (m *matches) Transition(_ context.Context, id int64, from, to model.MatchStatus) (*model.Match, error) {
	defer m.s.lock()()
	d := m.s.db
	match, ok := d.data.matches[id]
	if !ok || match.Status != from {
		return nil, store.ErrNotFound
	}
	if to == model.MatchLive {
		for otherID, other := range d.data.matches {
			if otherID != id && other.Status == model.MatchLive {
				return nil, store.ErrConflict
			}
		}
	}

	now := d.now()
	match.Status = to
	if to == model.MatchLive && match.StartedAt == nil {
		match.StartedAt = &now
	}
	if to == model.MatchCompleted {
		match.EndedAt = &now
	}
	match.LastUpdated = now
	d.data.matches[id] = match
	return &match, nil
}

func (m *matches) Advance(_ context.Context, id int64, delta store.BallDelta) (*model.BallState, error) {
	defer m.s.lock()()
	d := m.s.db
	if err := d.fault(OpMatchAdvance); err != nil {
		return nil, err
	}
	match, ok := d.data.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if match.Status != model.MatchLive {
		return nil, store.ErrMatchNotLive
	}

	if match.CurrentBall >= 6 {
		match.CurrentOver++
		match.CurrentBall = 1
	} else {
		match.CurrentBall++
	}
	match.Score += delta.Runs
	if delta.Wicket {
		match.Wickets++
	}
	match.BallsBowled++
	match.RunRate = roundRate(match.Score, match.BallsBowled)
	result := delta.Result
	match.LastBallResult = &result
	now := d.now()
	match.LastUpdated = now

	completed := false
	if match.BallsBowled >= match.TotalOvers*6 || match.Wickets >= maxWickets {
		match.Status = model.MatchCompleted
		match.EndedAt = &now
		completed = true
	}
	d.data.matches[id] = match

	return &model.BallState{
		MatchID:   match.ID,
		Over:      match.CurrentOver,
		Ball:      match.CurrentBall,
		Score:     match.Score,
		Wickets:   match.Wickets,
		RunRate:   match.RunRate,
		Completed: completed,
	}, nil
}

// roundRate matches ROUND(score*6.0/balls, 2).
func roundRate(score, balls int) float64 {
	if balls == 0 {
		return 0
	}
	hundredths := (int64(score)*600*2 + int64(balls)) / (int64(balls) * 2)
	return float64(hundredths) / 100
}

type predictions struct{ s *Store }

func (p *predictions) Create(_ context.Context, pred *model.Prediction) (int64, error) {
	defer p.s.lock()()
	d := p.s.db
	if err := d.fault(OpPredictionCreate); err != nil {
		return 0, err
	}
	if _, ok := d.data.users[pred.UserID]; !ok {
		return 0, store.ErrNotFound
	}
	if _, ok := d.data.matches[pred.MatchID]; !ok {
		return 0, store.ErrNotFound
	}
	d.data.nextPred++
	rec := *pred
	rec.ID = d.data.nextPred
	rec.CreatedAt = d.now()
	d.data.predictions = append(d.data.predictions, rec)
	return rec.ID, nil
}

func (p *predictions) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Prediction, error) {
	defer p.s.lock()()
	var out []*model.Prediction
	all := p.s.db.data.predictions
	for i := len(all) - 1; i >= 0 && (limit < 0 || len(out) < limit); i-- {
		if all[i].UserID == userID {
			rec := all[i]
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (p *predictions) StatsByUser(_ context.Context, userID int64) (*model.PredictionStats, error) {
	defer p.s.lock()()
	var stats model.PredictionStats
	for _, rec := range p.s.db.data.predictions {
		if rec.UserID != userID {
			continue
		}
		stats.Total++
		if rec.IsWinner {
			stats.Wins++
		}
		stats.TotalStake += rec.Stake
		stats.TotalWon += rec.Winnings
	}
	return &stats, nil
}

func (p *predictions) TopPredictors(_ context.Context, matchID int64, limit int) ([]*model.PredictorRank, error) {
	defer p.s.lock()()
	d := p.s.db
	byUser := make(map[int64]*model.PredictorRank)
	for _, rec := range d.data.predictions {
		if rec.MatchID != matchID {
			continue
		}
		rank, ok := byUser[rec.UserID]
		if !ok {
			rank = &model.PredictorRank{UserID: rec.UserID, DisplayName: d.data.users[rec.UserID].DisplayName}
			byUser[rec.UserID] = rank
		}
		rank.Predictions++
		if rec.IsWinner {
			rank.Wins++
		}
		rank.Net += rec.Winnings - rec.Stake
	}

	ranks := make([]*model.PredictorRank, 0, len(byUser))
	for _, rank := range byUser {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Net != ranks[j].Net {
			return ranks[i].Net > ranks[j].Net
		}
		return ranks[i].UserID < ranks[j].UserID
	})
	if limit >= 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

type ledger struct{ s *Store }

func (l *ledger) Create(_ context.Context, userID int64, amount int64, txType string, description *string) (*model.Transaction, error) {
	defer l.s.lock()()
	d := l.s.db
	if err := d.fault(OpLedgerCreate); err != nil {
		return nil, err
	}
	d.data.nextTx++
	tx := model.Transaction{
		ID:          d.data.nextTx,
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   d.now(),
	}
	d.data.ledger = append(d.data.ledger, tx)
	return &tx, nil
}

func (l *ledger) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	defer l.s.lock()()
	var out []*model.Transaction
	all := l.s.db.data.ledger
	for i := len(all) - 1; i >= 0 && (limit < 0 || len(out) < limit); i-- {
		if all[i].UserID == userID {
			tx := all[i]
			out = append(out, &tx)
		}
	}
	return out, nil
}
