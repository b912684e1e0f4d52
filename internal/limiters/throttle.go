package limiters

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig controls the per-address request throttle that runs in
// front of everything else, including blocked addresses.
type ThrottleConfig struct {
	// RequestsPerSecond is the sustained rate each address may attempt
	// logins at. 0 disables throttling.
	RequestsPerSecond float64

	// Burst is how many requests an idle address may fire at once.
	Burst int
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle applies a token-bucket rate limit per source address. It
// answers allow/deny only; callers decide what denial means.
type Throttle struct {
	config ThrottleConfig
	now    func() time.Time

	mu    sync.Mutex
	addrs map[string]*throttleEntry
}

// NewThrottle returns a throttle using the given clock; a nil clock
// means time.Now.
func NewThrottle(cfg ThrottleConfig, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		config: cfg,
		now:    now,
		addrs:  make(map[string]*throttleEntry),
	}
}

// Allow reports whether the address may proceed right now. Empty
// addresses and a zero rate always pass.
func (t *Throttle) Allow(ip string) bool {
	if ip == "" || t.config.RequestsPerSecond <= 0 {
		return true
	}
	now := t.now()

	t.mu.Lock()
	entry, ok := t.addrs[ip]
	if !ok {
		burst := t.config.Burst
		if burst < 1 {
			burst = 1
		}
		entry = &throttleEntry{
			limiter: rate.NewLimiter(rate.Limit(t.config.RequestsPerSecond), burst),
		}
		t.addrs[ip] = entry
	}
	entry.lastSeen = now
	t.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Sweep drops limiter entries idle longer than maxIdle, returning how
// many were removed.
func (t *Throttle) Sweep(maxIdle time.Duration) int {
	now := t.now()
	removed := 0

	t.mu.Lock()
	for ip, entry := range t.addrs {
		if now.Sub(entry.lastSeen) >= maxIdle {
			delete(t.addrs, ip)
			removed++
		}
	}
	t.mu.Unlock()
	return removed
}
