// Package session tracks in-flight purchase dialogues.
//
// A dialogue walks a fixed state machine: tier, then quantity, then payment
// method, then the payment receipt. State is held per user in memory and
// evicted after an hour of inactivity; only one dialogue per user exists at
// a time.
package session

import (
	"errors"
	"sync"
	"time"

	"lottery-bot/internal/model"
)

// State is a purchase dialogue's current step.
type State int

const (
	AwaitingTier State = iota
	AwaitingQuantity
	AwaitingPaymentMethod
	AwaitingReceipt
)

// TTL is how long an idle dialogue survives before the sweep evicts it.
const TTL = time.Hour

// ErrInvalidTransition is returned when input arrives for a step the
// dialogue is not on.
var ErrInvalidTransition = errors.New("input does not match dialogue state")

// Purchase is one user's dialogue-in-progress.
type Purchase struct {
	UserID        int64
	Username      string
	State         State
	Tier          model.Tier
	Quantity      int
	PaymentMethod string
	Touched       time.Time
}

// Store holds active dialogues keyed by user id.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Purchase
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Purchase),
		now:      time.Now,
	}
}

// Begin starts (or restarts) a dialogue for a user at the tier step.
func (s *Store) Begin(userID int64, username string) *Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Purchase{
		UserID:   userID,
		Username: username,
		State:    AwaitingTier,
		Touched:  s.now(),
	}
	s.sessions[userID] = p
	return p
}

// Get returns the user's live dialogue, or nil if none exists or it has
// already expired.
func (s *Store) Get(userID int64) *Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.sessions[userID]
	if !ok || s.now().Sub(p.Touched) > TTL {
		return nil
	}
	return p
}

// End discards the user's dialogue.
func (s *Store) End(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// SetTier advances AwaitingTier -> AwaitingQuantity.
func (s *Store) SetTier(userID int64, tier model.Tier) error {
	return s.advance(userID, AwaitingTier, func(p *Purchase) {
		p.Tier = tier
		p.State = AwaitingQuantity
	})
}

// SetQuantity advances AwaitingQuantity -> AwaitingPaymentMethod.
func (s *Store) SetQuantity(userID int64, quantity int) error {
	if quantity < 1 || quantity > model.MaxQuantity {
		return ErrInvalidTransition
	}
	return s.advance(userID, AwaitingQuantity, func(p *Purchase) {
		p.Quantity = quantity
		p.State = AwaitingPaymentMethod
	})
}

// SetPaymentMethod advances AwaitingPaymentMethod -> AwaitingReceipt.
func (s *Store) SetPaymentMethod(userID int64, method string) error {
	return s.advance(userID, AwaitingPaymentMethod, func(p *Purchase) {
		p.PaymentMethod = method
		p.State = AwaitingReceipt
	})
}

func (s *Store) advance(userID int64, from State, apply func(*Purchase)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sessions[userID]
	if !ok || p.State != from || s.now().Sub(p.Touched) > TTL {
		return ErrInvalidTransition
	}
	apply(p)
	p.Touched = s.now()
	return nil
}

// EvictExpired drops every dialogue idle past the TTL and reports how many
// were removed. Called by the hourly sweep.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	cutoff := s.now().Add(-TTL)
	for id, p := range s.sessions {
		if p.Touched.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live sessions (expired ones included until the
// next sweep).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
