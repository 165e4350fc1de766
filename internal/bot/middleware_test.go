package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, limiter.Allow(1), "request %d should pass", i+1)
	}
	assert.False(t, limiter.Allow(1), "request over the limit should be dropped")

	// Another user has an independent allowance.
	assert.True(t, limiter.Allow(2))

	// Just before the window slides, still blocked.
	now = now.Add(rateLimitWindow - time.Second)
	assert.False(t, limiter.Allow(1))

	// Once the first requests age out, capacity returns.
	now = now.Add(2 * time.Second)
	assert.True(t, limiter.Allow(1))
}

func TestRateLimiterPrunesHistory(t *testing.T) {
	limiter := NewRateLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < rateLimitMax; i++ {
		limiter.Allow(1)
	}
	now = now.Add(rateLimitWindow + time.Second)
	assert.True(t, limiter.Allow(1))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.history[1], 1)
}
