package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/campuskit/authcore/cache"
	"github.com/campuskit/authcore/internal/ids"
	"github.com/campuskit/authcore/rbac"
)

// ErrLimitExceeded is returned by Create when the user is at their
// concurrent-session cap and eviction is disabled.
var ErrLimitExceeded = errors.New("session: concurrent session limit exceeded")

// ErrNotFound is returned when a session ID resolves to nothing live.
var ErrNotFound = errors.New("session: not found")

const sessionCache = "session"

// Session is one authenticated presence. LastAccess drives idle expiry;
// every successful token validation touches it.
type Session struct {
	ID         string
	Username   string
	Role       rbac.Role
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastAccess time.Time
	RememberMe bool
}

func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastAccess) >= timeout
}

// Config holds registry limits and lifetimes.
type Config struct {
	// Timeout is the idle window; a session untouched for this long is
	// dead even if its tokens have not expired.
	Timeout time.Duration

	// MaxPerUser caps live sessions per user. 0 means unlimited.
	MaxPerUser int

	// EvictOldest makes Create displace the user's least recently used
	// session at the cap instead of failing.
	EvictOldest bool

	// SweepInterval is how often the owning Guard should call Sweep.
	SweepInterval time.Duration
}

// DefaultConfig returns the default limits: 60 minute idle timeout,
// unlimited sessions, 5 minute sweep cadence.
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// RemovalHook runs whenever a session leaves the registry, whatever the
// cause (logout, eviction, expiry, sweep). The token codec hangs its
// session-wide revocation here.
type RemovalHook func(ctx context.Context, s *Session)

// Registry is the authoritative in-process session table. All methods
// are safe for concurrent use; the cap check in Create and the removal
// hook both run inside the critical section that mutates the table, so
// no interleaving can oversubscribe a user or leak a live token for a
// dead session.
type Registry struct {
	config    Config
	now       func() time.Time
	hook      RemovalHook
	evictHook RemovalHook
	cache     cache.Cache

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRemovalHook installs the hook invoked on every session removal.
func WithRemovalHook(hook RemovalHook) Option {
	return func(r *Registry) { r.hook = hook }
}

// WithEvictionHook installs a hook that fires, in addition to the
// removal hook, when Create displaces a session at the cap.
func WithEvictionHook(hook RemovalHook) Option {
	return func(r *Registry) { r.evictHook = hook }
}

// WithCache mirrors session liveness into a shared cache so sibling
// processes can answer "is this session alive" cheaply. The in-process
// table stays authoritative.
func WithCache(c cache.Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// NewRegistry validates cfg and returns an empty registry.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("session: timeout must be positive")
	}
	if cfg.MaxPerUser < 0 {
		return nil, errors.New("session: max sessions per user must be >= 0")
	}

	r := &Registry{
		config:   cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create registers a new session for the user. The per-user cap is
// enforced against live sessions only, inside the same critical section
// that inserts the new one, so concurrent logins cannot race past it.
// At the cap it either evicts the user's least recently used session or
// returns ErrLimitExceeded, per config.
func (r *Registry) Create(ctx context.Context, username string, role rbac.Role, ip, userAgent string, rememberMe bool) (*Session, error) {
	now := r.now()
	var evicted *Session

	r.mu.Lock()
	if r.config.MaxPerUser > 0 {
		live := r.liveForUserLocked(username, now)
		if len(live) >= r.config.MaxPerUser {
			if !r.config.EvictOldest {
				r.mu.Unlock()
				return nil, ErrLimitExceeded
			}
			sort.Slice(live, func(i, j int) bool {
				return live[i].LastAccess.Before(live[j].LastAccess)
			})
			evicted = live[0]
			r.removeLocked(evicted.ID)
		}
	}

	s := &Session{
		ID:         ids.NewSessionID(),
		Username:   username,
		Role:       role,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastAccess: now,
		RememberMe: rememberMe,
	}
	r.sessions[s.ID] = s
	set, ok := r.byUser[username]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[username] = set
	}
	set[s.ID] = struct{}{}
	created := *s
	r.mu.Unlock()

	if evicted != nil {
		r.afterRemoval(ctx, evicted)
		if r.evictHook != nil {
			r.evictHook(ctx, evicted)
		}
	}
	if r.cache != nil {
		_ = r.cache.Put(ctx, sessionCache, s.ID, username, r.config.Timeout)
	}
	return &created, nil
}

// Get returns the live session or ErrNotFound. An idle-expired session
// is removed on the spot rather than waiting for the sweeper.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok && s.expired(now, r.config.Timeout) {
		r.removeLocked(sessionID)
		r.mu.Unlock()
		r.afterRemoval(ctx, s)
		return nil, ErrNotFound
	}
	var out *Session
	if ok {
		copied := *s
		out = &copied
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return out, nil
}

// Touch refreshes the session's idle window. Touching a dead session
// returns ErrNotFound rather than resurrecting it.
func (r *Registry) Touch(ctx context.Context, sessionID string) error {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok && s.expired(now, r.config.Timeout) {
		r.removeLocked(sessionID)
		r.mu.Unlock()
		r.afterRemoval(ctx, s)
		return ErrNotFound
	}
	if ok {
		s.LastAccess = now
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Put(ctx, sessionCache, sessionID, s.Username, r.config.Timeout)
	}
	return nil
}

// Remove deletes the session and fires the removal hook. Removing an
// unknown session is a no-op.
func (r *Registry) Remove(ctx context.Context, sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		r.removeLocked(sessionID)
	}
	r.mu.Unlock()

	if ok {
		r.afterRemoval(ctx, s)
	}
}

// RemoveAllForUser removes every session belonging to the user and
// returns how many were removed.
func (r *Registry) RemoveAllForUser(ctx context.Context, username string) int {
	r.mu.Lock()
	var removed []*Session
	for id := range r.byUser[username] {
		if s, ok := r.sessions[id]; ok {
			removed = append(removed, s)
		}
		r.removeLocked(id)
	}
	r.mu.Unlock()

	for _, s := range removed {
		r.afterRemoval(ctx, s)
	}
	return len(removed)
}

// UserSessions returns the user's live sessions, most recently used
// first. The returned sessions are copies; Touch keeps mutating the
// registry's own records.
func (r *Registry) UserSessions(username string) []*Session {
	now := r.now()

	r.mu.Lock()
	live := r.liveForUserLocked(username, now)
	sort.Slice(live, func(i, j int) bool {
		return live[i].LastAccess.After(live[j].LastAccess)
	})
	out := make([]*Session, len(live))
	for i, s := range live {
		copied := *s
		out[i] = &copied
	}
	r.mu.Unlock()

	return out
}

// ActiveCount returns the number of live sessions across all users.
func (r *Registry) ActiveCount() int {
	now := r.now()
	n := 0

	r.mu.Lock()
	for _, s := range r.sessions {
		if !s.expired(now, r.config.Timeout) {
			n++
		}
	}
	r.mu.Unlock()
	return n
}

// Sweep removes idle-expired sessions, fires their removal hooks, and
// returns how many were dropped.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var removed []*Session
	for id, s := range r.sessions {
		if s.expired(now, r.config.Timeout) {
			removed = append(removed, s)
			r.removeLocked(id)
		}
	}
	r.mu.Unlock()

	for _, s := range removed {
		r.afterRemoval(ctx, s)
	}
	return len(removed)
}

// liveForUserLocked returns the user's unexpired sessions. Expired ones
// found along the way are left for Get/Sweep to reap so this stays a
// read.
func (r *Registry) liveForUserLocked(username string, now time.Time) []*Session {
	var live []*Session
	for id := range r.byUser[username] {
		if s, ok := r.sessions[id]; ok && !s.expired(now, r.config.Timeout) {
			live = append(live, s)
		}
	}
	return live
}

func (r *Registry) removeLocked(sessionID string) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if set, ok := r.byUser[s.Username]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, s.Username)
		}
	}
}

func (r *Registry) afterRemoval(ctx context.Context, s *Session) {
	if r.cache != nil {
		_ = r.cache.Remove(ctx, sessionCache, s.ID)
	}
	if r.hook != nil {
		r.hook(ctx, s)
	}
}
