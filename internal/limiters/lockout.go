package limiters

import (
	"sync"
	"time"
)

// LockoutConfig controls the per-account failed-attempt tracker.
type LockoutConfig struct {
	// MaxAttempts is the number of consecutive failures that triggers a
	// lock.
	MaxAttempts int

	// Window bounds how long failures accumulate; a failure older than
	// this no longer counts toward the threshold.
	Window time.Duration

	// LockDuration is how long an account stays locked once triggered.
	LockDuration time.Duration
}

type accountState struct {
	failures    []time.Time
	lockedUntil time.Time
}

// AttemptTracker counts failed login attempts per account and locks the
// account when the threshold is crossed inside the window. Locks expire
// by time alone; a correct password during the lock is still refused and
// does not extend or reset anything.
type AttemptTracker struct {
	config LockoutConfig
	now    func() time.Time

	mu       sync.Mutex
	accounts map[string]*accountState
}

// NewAttemptTracker returns a tracker using the given clock; a nil clock
// means time.Now.
func NewAttemptTracker(cfg LockoutConfig, now func() time.Time) *AttemptTracker {
	if now == nil {
		now = time.Now
	}
	return &AttemptTracker{
		config:   cfg,
		now:      now,
		accounts: make(map[string]*accountState),
	}
}

// Check reports whether the account is currently locked and, if so,
// until when. An expired lock is cleared on the spot.
func (t *AttemptTracker) Check(username string) (bool, time.Time) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.accounts[username]
	if !ok {
		return false, time.Time{}
	}
	if state.lockedUntil.IsZero() {
		return false, time.Time{}
	}
	if !now.Before(state.lockedUntil) {
		// Lock served its time. Failures start from zero.
		delete(t.accounts, username)
		return false, time.Time{}
	}
	return true, state.lockedUntil
}

// RecordFailure registers a failed attempt and reports whether this
// failure crossed the threshold, locking the account.
func (t *AttemptTracker) RecordFailure(username string) (locked bool, until time.Time) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.accounts[username]
	if !ok {
		state = &accountState{}
		t.accounts[username] = state
	}
	if !state.lockedUntil.IsZero() && now.Before(state.lockedUntil) {
		return true, state.lockedUntil
	}

	state.failures = append(state.failures, now)
	state.failures = trimWindow(state.failures, now, t.config.Window)

	if len(state.failures) >= t.config.MaxAttempts {
		state.lockedUntil = now.Add(t.config.LockDuration)
		state.failures = nil
		return true, state.lockedUntil
	}
	return false, time.Time{}
}

// Reset clears the account's failures and any lock. Successful
// authentication calls this.
func (t *AttemptTracker) Reset(username string) {
	t.mu.Lock()
	delete(t.accounts, username)
	t.mu.Unlock()
}

// FailureCount returns the failures currently inside the window.
func (t *AttemptTracker) FailureCount(username string) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.accounts[username]
	if !ok {
		return 0
	}
	state.failures = trimWindow(state.failures, now, t.config.Window)
	return len(state.failures)
}

// Sweep drops accounts whose lock has expired and whose failure window
// is empty, returning how many entries were removed.
func (t *AttemptTracker) Sweep() int {
	now := t.now()
	removed := 0

	t.mu.Lock()
	for username, state := range t.accounts {
		lockDone := state.lockedUntil.IsZero() || !now.Before(state.lockedUntil)
		state.failures = trimWindow(state.failures, now, t.config.Window)
		if lockDone && len(state.failures) == 0 {
			delete(t.accounts, username)
			removed++
		}
	}
	t.mu.Unlock()
	return removed
}

func trimWindow(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	if window <= 0 {
		return stamps
	}
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
