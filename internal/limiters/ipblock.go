package limiters

import (
	"sync"
	"time"
)

// IPBlockConfig controls the per-source-address failure blocker.
type IPBlockConfig struct {
	// MaxAttempts is the number of failures inside Window that blocks
	// the address.
	MaxAttempts int

	Window time.Duration

	// BlockDuration is how long a triggered block lasts.
	BlockDuration time.Duration
}

type ipState struct {
	failures     []time.Time
	blockedUntil time.Time
}

// IPBlocker tracks failed attempts per source address across all
// accounts. It catches spraying attacks that never hit one account hard
// enough to trip the lockout tracker.
type IPBlocker struct {
	config IPBlockConfig
	now    func() time.Time

	mu    sync.Mutex
	addrs map[string]*ipState
}

// NewIPBlocker returns a blocker using the given clock; a nil clock
// means time.Now.
func NewIPBlocker(cfg IPBlockConfig, now func() time.Time) *IPBlocker {
	if now == nil {
		now = time.Now
	}
	return &IPBlocker{
		config: cfg,
		now:    now,
		addrs:  make(map[string]*ipState),
	}
}

// Check reports whether the address is currently blocked and until when.
// Expired blocks are cleared on the spot. The empty address is never
// blocked.
func (b *IPBlocker) Check(ip string) (bool, time.Time) {
	if ip == "" {
		return false, time.Time{}
	}
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.addrs[ip]
	if !ok || state.blockedUntil.IsZero() {
		return false, time.Time{}
	}
	if !now.Before(state.blockedUntil) {
		delete(b.addrs, ip)
		return false, time.Time{}
	}
	return true, state.blockedUntil
}

// RecordFailure registers a failure from the address and reports whether
// it crossed the threshold inside the sliding window.
func (b *IPBlocker) RecordFailure(ip string) (blocked bool, until time.Time) {
	if ip == "" {
		return false, time.Time{}
	}
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.addrs[ip]
	if !ok {
		state = &ipState{}
		b.addrs[ip] = state
	}
	if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
		return true, state.blockedUntil
	}

	state.failures = append(state.failures, now)
	state.failures = trimWindow(state.failures, now, b.config.Window)

	if len(state.failures) >= b.config.MaxAttempts {
		state.blockedUntil = now.Add(b.config.BlockDuration)
		state.failures = nil
		return true, state.blockedUntil
	}
	return false, time.Time{}
}

// Reset clears the address's failures and any block.
func (b *IPBlocker) Reset(ip string) {
	b.mu.Lock()
	delete(b.addrs, ip)
	b.mu.Unlock()
}

// Sweep drops addresses with no live block and an empty window,
// returning how many entries were removed.
func (b *IPBlocker) Sweep() int {
	now := b.now()
	removed := 0

	b.mu.Lock()
	for ip, state := range b.addrs {
		blockDone := state.blockedUntil.IsZero() || !now.Before(state.blockedUntil)
		state.failures = trimWindow(state.failures, now, b.config.Window)
		if blockDone && len(state.failures) == 0 {
			delete(b.addrs, ip)
			removed++
		}
	}
	b.mu.Unlock()
	return removed
}
