// Package redemption tracks payment hashes that have already been used
// to unlock a request, so one on-chain payment cannot be replayed for
// many requests.
//
// The store is in-memory and best-effort: single-instance deployments
// only, nothing survives a restart. For a load-balanced cluster an
// implementation with a shared backend would be needed. Enforcement is
// opt-in via configuration and off by default.
package redemption

import (
	"strings"
	"sync"
	"time"
)

// Store is a thread-safe set of redeemed transaction hashes with a TTL
// window. Entries expire lazily: after the TTL a hash becomes usable
// again, bounding memory without a background sweeper.
type Store struct {
	mu       sync.Mutex
	redeemed map[string]time.Time
	ttl      time.Duration

	now func() time.Time
}

// NewStore creates a store whose entries expire after ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		redeemed: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Redeem atomically marks a hash as used. It returns false when the
// hash was already redeemed inside the TTL window. Hash comparison is
// case-insensitive to match address and hash normalization elsewhere.
func (s *Store) Redeem(txHash string) bool {
	key := strings.ToLower(txHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, exists := s.redeemed[key]; exists {
		if now.Before(expiry) {
			return false
		}
		delete(s.redeemed, key)
	}

	s.redeemed[key] = now.Add(s.ttl)
	s.cleanupExpiredLocked(now)
	return true
}

// IsRedeemed reports whether a hash is currently marked as used.
func (s *Store) IsRedeemed(txHash string) bool {
	key := strings.ToLower(txHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.redeemed[key]
	return exists && s.now().Before(expiry)
}

// cleanupExpiredLocked removes expired entries. Caller holds the lock.
func (s *Store) cleanupExpiredLocked(now time.Time) {
	for key, expiry := range s.redeemed {
		if now.After(expiry) {
			delete(s.redeemed, key)
		}
	}
}
