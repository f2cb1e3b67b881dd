package libs

import (
	"sync"
	"time"
)

// SecurityManager owns the in-memory sliding-window rate buckets and
// failed-login tracking. State is process-lifetime only; nothing is
// persisted across restarts.
type SecurityManager struct {
	limit         int
	window        time.Duration
	maxAttempts   int
	loginCooldown time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
	attempts map[string][]time.Time

	now func() time.Time
}

func NewSecurityManager(limit int, window time.Duration, maxAttempts int, loginCooldown time.Duration) *SecurityManager {
	return &SecurityManager{
		limit:         limit,
		window:        window,
		maxAttempts:   maxAttempts,
		loginCooldown: loginCooldown,
		requests:      make(map[string][]time.Time),
		attempts:      make(map[string][]time.Time),
		now:           time.Now,
	}
}

// SetClock injects a deterministic clock for tests.
func (s *SecurityManager) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Allow records the request against identifier's window and reports
// whether it is admitted. The request is recorded even when rejected,
// so a client cannot reset its own limit by bursting rejected calls.
func (s *SecurityManager) Allow(identifier string) bool {
	return s.AllowN(identifier, s.limit)
}

// AllowN is Allow with a per-call limit override.
func (s *SecurityManager) AllowN(identifier string, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	bucket := pruneBefore(s.requests[identifier], now.Add(-s.window))
	bucket = append(bucket, now)
	s.requests[identifier] = bucket
	return len(bucket) <= limit
}

// IsLoginBlocked reports whether identifier has exhausted its failed
// login attempts within the cooldown period.
func (s *SecurityManager) IsLoginBlocked(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := pruneBefore(s.attempts[identifier], now.Add(-s.loginCooldown))
	s.attempts[identifier] = recent
	return len(recent) >= s.maxAttempts
}

func (s *SecurityManager) RecordFailedLogin(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := pruneBefore(s.attempts[identifier], now.Add(-s.loginCooldown))
	s.attempts[identifier] = append(recent, now)
}

func (s *SecurityManager) ClearLoginAttempts(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, identifier)
}

// pruneBefore drops timestamps at or before cutoff. Entries are
// appended in order, so the first retained index bounds the rest.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}
