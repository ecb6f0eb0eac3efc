// Package ratelimit implements token bucket rate limiting keyed by client
// IP or authenticated account id.
package ratelimit

import (
	"sync"
	"time"
)

// idleThreshold is how long a bucket may sit unused before cleanup
// removes it.
const idleThreshold = 5 * time.Minute

// Limiter is a single token bucket.
type Limiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// NewLimiter creates a full bucket refilling at rate tokens per second.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastSeen: time.Now(),
	}
}

// Allow consumes one token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastSeen).Seconds() * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastSeen = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Tokens returns the current token count.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// Store tracks one bucket per client key.
type Store struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.RWMutex
}

// NewStore creates a bucket store. A non-zero cleanupInterval starts a
// background sweep of idle buckets.
func NewStore(rate float64, burst int, cleanupInterval time.Duration) *Store {
	s := &Store{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}

	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

// Allow checks and consumes a token for the given key, creating the
// bucket on first use.
func (s *Store) Allow(key string) bool {
	s.mu.RLock()
	limiter, ok := s.limiters[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if limiter, ok = s.limiters[key]; !ok {
			limiter = NewLimiter(s.rate, s.burst)
			s.limiters[key] = limiter
		}
		s.mu.Unlock()
	}

	return limiter.Allow()
}

// Reset drops the bucket for a key.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, key)
}

// Count returns the number of tracked buckets.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		s.sweep()
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, limiter := range s.limiters {
		limiter.mu.Lock()
		idle := now.Sub(limiter.lastSeen)
		limiter.mu.Unlock()

		if idle > idleThreshold {
			delete(s.limiters, key)
		}
	}
}

// Config holds rate limiting settings.
type Config struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// Service applies rate limits per client IP for anonymous traffic and per
// account id for authenticated traffic.
type Service struct {
	config    Config
	ipStore   *Store
	userStore *Store
}

// NewService creates a rate limiting service from config.
func NewService(config Config) *Service {
	s := &Service{config: config}
	if config.Enabled {
		s.ipStore = NewStore(config.RequestsPerSec, config.Burst, config.CleanupInterval)
		s.userStore = NewStore(config.RequestsPerSec, config.Burst, config.CleanupInterval)
	}
	return s
}

// AllowIP checks the bucket for a client IP.
func (s *Service) AllowIP(ip string) bool {
	if s.ipStore == nil {
		return true
	}
	return s.ipStore.Allow(ip)
}

// AllowUser checks the bucket for an authenticated account.
func (s *Service) AllowUser(userID string) bool {
	if s.userStore == nil {
		return true
	}
	return s.userStore.Allow(userID)
}

// Stats reports the number of tracked buckets per store.
func (s *Service) Stats() map[string]interface{} {
	stats := make(map[string]interface{})
	if s.ipStore != nil {
		stats["ip_limiters"] = s.ipStore.Count()
	}
	if s.userStore != nil {
		stats["user_limiters"] = s.userStore.Count()
	}
	return stats
}
