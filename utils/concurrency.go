package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces out calls so that consecutive Wait returns are at
// least the configured interval apart.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

// NewRateLimiter creates a RateLimiter. A zero interval never blocks.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until the next call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.last.IsZero() {
		if wait := rl.interval - time.Since(rl.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	rl.last = time.Now()
	return nil
}

// TokenSet is a thread-safe set for tracking page tokens already requested.
type TokenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewTokenSet creates an empty TokenSet.
func NewTokenSet() *TokenSet {
	return &TokenSet{seen: make(map[string]struct{})}
}

// Add returns true if the token was newly added, false if already present.
func (s *TokenSet) Add(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[token]; exists {
		return false
	}
	s.seen[token] = struct{}{}
	return true
}

// Contains returns true if the token has already been requested.
func (s *TokenSet) Contains(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[token]
	return exists
}

// Size returns the number of unique tokens tracked.
func (s *TokenSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
