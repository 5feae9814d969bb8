package auth

import (
	"sync"
	"time"
)

const (
	maxPinAttempts  = 5
	lockoutDuration = time.Minute
)

type attemptState struct {
	failures    int
	lockedUntil time.Time
}

// PinLimiter throttles PIN guessing per user. After maxPinAttempts
// consecutive failures the user is locked out for lockoutDuration; a
// successful login clears the counter.
type PinLimiter struct {
	mu    sync.Mutex
	state map[string]*attemptState
	now   func() time.Time
}

func NewPinLimiter() *PinLimiter {
	return &PinLimiter{
		state: make(map[string]*attemptState),
		now:   time.Now,
	}
}

// Allow reports whether the user may attempt a PIN login right now.
func (l *PinLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.state[userID]
	if !ok {
		return true
	}
	if l.now().Before(s.lockedUntil) {
		return false
	}
	// Lockout expired; start fresh.
	if !s.lockedUntil.IsZero() {
		delete(l.state, userID)
	}
	return true
}

// Failure records a failed attempt and returns whether the user is now
// locked out.
func (l *PinLimiter) Failure(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.state[userID]
	if !ok {
		s = &attemptState{}
		l.state[userID] = s
	}
	s.failures++
	if s.failures >= maxPinAttempts {
		s.lockedUntil = l.now().Add(lockoutDuration)
		s.failures = 0
		return true
	}
	return false
}

// Success clears any recorded failures for the user.
func (l *PinLimiter) Success(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, userID)
}
