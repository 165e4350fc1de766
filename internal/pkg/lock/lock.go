// Package lock provides keyed mutual exclusion.
//
// The draw engine holds one lock per tier around the whole
// guard-countdown-settle sequence so a manual trigger can never race a
// scheduled one, and handlers hold one lock per user around dialogue
// mutations.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry wraps a mutex with reference counting for cleanup.
type entry struct {
	mu       sync.Mutex
	refCount int
}

// Keyed provides per-key locking to prevent race conditions between
// operations sharing the same key.
type Keyed[K comparable] struct {
	locks sync.Map // map[K]*entry
	pool  sync.Pool
}

// NewKeyed creates a new Keyed lock instance.
func NewKeyed[K comparable]() *Keyed[K] {
	return &Keyed[K]{
		pool: sync.Pool{
			New: func() any {
				return &entry{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given key.
func (kl *Keyed[K]) getLock(key K) *entry {
	// Try to load existing lock
	if v, ok := kl.locks.Load(key); ok {
		return v.(*entry)
	}

	// Create new lock from pool
	newLock := kl.pool.Get().(*entry)
	newLock.refCount = 0

	// Store or load existing (handles race condition)
	actual, loaded := kl.locks.LoadOrStore(key, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		kl.pool.Put(newLock)
	}
	return actual.(*entry)
}

// Lock acquires the lock for a key.
func (kl *Keyed[K]) Lock(key K) {
	lock := kl.getLock(key)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a key.
func (kl *Keyed[K]) Unlock(key K) {
	if v, ok := kl.locks.Load(key); ok {
		lock := v.(*entry)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *Keyed[K]) TryLock(key K) bool {
	lock := kl.getLock(key)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// LockWithTimeout attempts to acquire the lock with a timeout.
// Returns true if the lock was acquired, false if timeout occurred.
func (kl *Keyed[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	lock := kl.getLock(key)

	// Create a channel to signal lock acquisition
	done := make(chan struct{})

	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		lock.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire; release it again
		// once it does so the lock does not leak.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes a function while holding the key's lock.
func (kl *Keyed[K]) WithLock(key K, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes a function while holding the key's lock,
// with context support for cancellation.
func (kl *Keyed[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !kl.LockWithTimeout(ctx, key, timeout) {
		return ErrLockTimeout
	}
	defer kl.Unlock(key)

	// Check if context was cancelled while waiting for lock
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// IsLocked checks if a key currently has an active lock.
// Note: This is a point-in-time check and may change immediately after.
func (kl *Keyed[K]) IsLocked(key K) bool {
	if v, ok := kl.locks.Load(key); ok {
		lock := v.(*entry)
		// Try to acquire and immediately release to check if locked
		if lock.mu.TryLock() {
			lock.mu.Unlock()
			return false
		}
		return true
	}
	return false
}
