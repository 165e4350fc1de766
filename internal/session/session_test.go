package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-bot/internal/model"
)

func TestDialogueHappyPath(t *testing.T) {
	s := NewStore()

	p := s.Begin(7, "alice")
	assert.Equal(t, AwaitingTier, p.State)

	require.NoError(t, s.SetTier(7, model.TierWeekly))
	require.NoError(t, s.SetQuantity(7, 3))
	require.NoError(t, s.SetPaymentMethod(7, model.PaymentShamCash))

	p = s.Get(7)
	require.NotNil(t, p)
	assert.Equal(t, AwaitingReceipt, p.State)
	assert.Equal(t, model.TierWeekly, p.Tier)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, model.PaymentShamCash, p.PaymentMethod)

	s.End(7)
	assert.Nil(t, s.Get(7))
}

func TestOutOfOrderInputRejected(t *testing.T) {
	s := NewStore()
	s.Begin(7, "alice")

	// Quantity before tier.
	assert.ErrorIs(t, s.SetQuantity(7, 2), ErrInvalidTransition)
	// Payment before quantity.
	require.NoError(t, s.SetTier(7, model.TierDaily))
	assert.ErrorIs(t, s.SetPaymentMethod(7, model.PaymentShamCash), ErrInvalidTransition)
	// No dialogue at all.
	assert.ErrorIs(t, s.SetTier(99, model.TierDaily), ErrInvalidTransition)
}

func TestBeginRestartsDialogue(t *testing.T) {
	s := NewStore()
	s.Begin(7, "alice")
	require.NoError(t, s.SetTier(7, model.TierDaily))

	p := s.Begin(7, "alice")
	assert.Equal(t, AwaitingTier, p.State)
	assert.Zero(t, p.Quantity)
}

func TestExpiredSessionIsGone(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Begin(7, "alice")
	require.NoError(t, s.SetTier(7, model.TierDaily))

	now = now.Add(TTL + time.Minute)
	assert.Nil(t, s.Get(7))
	assert.ErrorIs(t, s.SetQuantity(7, 1), ErrInvalidTransition)
}

func TestEvictExpired(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Begin(1, "a")
	s.Begin(2, "b")
	now = now.Add(TTL + time.Minute)
	s.Begin(3, "c")

	evicted := s.EvictExpired()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, s.Len())
	assert.NotNil(t, s.Get(3))
}
