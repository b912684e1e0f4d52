package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campuskit/authcore/cache"
	"github.com/campuskit/authcore/internal/ids"
	"github.com/campuskit/authcore/rbac"
)

const revocationCache = "token_revoked"

// Codec issues, validates, refreshes, and revokes signed tokens. The
// in-process record table is authoritative; a Cache, when attached,
// propagates revocations to sibling processes but is never consulted to
// admit a token this process does not know.
type Codec struct {
	config Config
	now    func() time.Time
	cache  cache.Cache

	mu        sync.RWMutex
	records   map[string]*Record             // by token ID
	bySession map[string]map[string]struct{} // session ID -> token IDs
	byUser    map[string]map[string]struct{} // username -> token IDs
}

// Option configures a Codec.
type Option func(*Codec)

// WithCache attaches a revocation-propagation cache.
func WithCache(c cache.Cache) Option {
	return func(cd *Codec) { cd.cache = c }
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.RememberMeTTL <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}

	c := &Codec{
		config:    cfg,
		now:       cfg.Now,
		records:   make(map[string]*Record),
		bySession: make(map[string]map[string]struct{}),
		byUser:    make(map[string]map[string]struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate signs a fresh token of the given type bound to the user, role,
// and session, and registers its server-side record.
func (c *Codec) Generate(username string, role rbac.Role, sessionID string, typ Type) (*Record, error) {
	ttl, err := c.config.ttl(typ)
	if err != nil {
		return nil, err
	}

	now := c.now()
	id := ids.NewTokenID()

	claims := Claims{
		Role:      role,
		SessionID: sessionID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   username,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:        id,
		Subject:   username,
		Role:      role,
		SessionID: sessionID,
		Type:      typ,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		LastUsed:  now,
		Token:     signed,
	}

	// The table keeps its own copy; the caller's record is never touched
	// by later Validate/Revoke mutations.
	stored := *rec
	c.mu.Lock()
	c.records[id] = &stored
	indexAdd(c.bySession, sessionID, id)
	indexAdd(c.byUser, username, id)
	c.mu.Unlock()

	return rec, nil
}

// Validate parses and verifies a compact token string. It is fail-closed:
// every failure path, signature, structure, expiry, unknown record, or
// revocation, returns a nil record and an error unwrapping to ErrInvalid.
// On success the record's last-used time is advanced.
func (c *Codec) Validate(ctx context.Context, tokenString string) (*Record, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.config.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.config.Issuer),
	)
	if err != nil {
		reason := "malformed or bad signature"
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			reason = "expired"
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			reason = "wrong issuer"
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			reason = "bad signature"
		}
		return nil, &InvalidError{Reason: reason}
	}

	// Everything read from the record is captured inside the critical
	// section; Revoke writes the flag under the same lock.
	var (
		snapshot Record
		revoked  bool
	)
	c.mu.Lock()
	rec, ok := c.records[claims.ID]
	if ok {
		revoked = rec.Revoked
		if !revoked {
			rec.LastUsed = c.now()
		}
		snapshot = *rec
	}
	c.mu.Unlock()

	if !ok {
		return nil, &InvalidError{Reason: "unknown token"}
	}
	if revoked {
		return nil, &InvalidError{Reason: "revoked"}
	}

	// Cross-process revocations land in the cache before sibling record
	// tables learn of them. A cache miss or cache failure falls back to
	// the local verdict above.
	if c.cache != nil {
		if cached, err := c.cache.Contains(ctx, revocationCache, claims.ID); err == nil && cached {
			c.mu.Lock()
			rec.Revoked = true
			c.mu.Unlock()
			return nil, &InvalidError{Reason: "revoked"}
		}
	}

	return &snapshot, nil
}

// RefreshResult is the outcome of a refresh exchange. Access is always
// newly issued; Refresh is the token to present next time, which is the
// original unless rotation replaced it.
type RefreshResult struct {
	Access  *Record
	Refresh *Record
	Rotated bool
}

// Refresh validates a refresh or remember-me token and issues a new
// access token for the same user, role, and session. When the presented
// token has lived past the configured fraction of its lifetime it is
// rotated: a replacement of the same type is issued and the old one
// revoked, so a stolen stale refresh token dies with the exchange.
func (c *Codec) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	rec, err := c.Validate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rec.Type != TypeRefresh && rec.Type != TypeRememberMe {
		return nil, &InvalidError{Reason: "not a refresh token"}
	}

	access, err := c.Generate(rec.Subject, rec.Role, rec.SessionID, TypeAccess)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Access: access, Refresh: rec}

	if c.shouldRotate(rec) {
		replacement, err := c.Generate(rec.Subject, rec.Role, rec.SessionID, rec.Type)
		if err != nil {
			return nil, err
		}
		if err := c.Revoke(ctx, rec.ID); err != nil {
			return nil, err
		}
		result.Refresh = replacement
		result.Rotated = true
	}

	return result, nil
}

func (c *Codec) shouldRotate(rec *Record) bool {
	fraction := c.config.RotateAfterFraction
	if fraction < 0 {
		return false
	}
	lifetime := rec.ExpiresAt.Sub(rec.IssuedAt)
	elapsed := c.now().Sub(rec.IssuedAt)
	return float64(elapsed) >= fraction*float64(lifetime)
}

// Revoke marks a single token as revoked. The record stays in the table
// until its natural expiry so re-presentation reads "revoked" rather than
// "unknown". Revoking an unknown ID is a no-op.
func (c *Codec) Revoke(ctx context.Context, tokenID string) error {
	c.mu.Lock()
	rec, ok := c.records[tokenID]
	if ok {
		rec.Revoked = true
	}
	c.mu.Unlock()

	if ok && c.cache != nil {
		ttl := rec.ExpiresAt.Sub(c.now())
		if ttl > 0 {
			// Best effort. Local state already holds the revocation.
			_ = c.cache.Put(ctx, revocationCache, tokenID, "1", ttl)
		}
	}
	return nil
}

// RevokeBySession revokes every live token bound to the session and
// returns how many were revoked. Session teardown calls this so a removed
// session can never be resurrected through a surviving token.
func (c *Codec) RevokeBySession(ctx context.Context, sessionID string) int {
	return c.revokeIndexed(ctx, c.bySession, sessionID)
}

// RevokeByUser revokes every live token issued to the user across all
// their sessions and returns how many were revoked.
func (c *Codec) RevokeByUser(ctx context.Context, username string) int {
	return c.revokeIndexed(ctx, c.byUser, username)
}

func (c *Codec) revokeIndexed(ctx context.Context, index map[string]map[string]struct{}, key string) int {
	type pending struct {
		id  string
		ttl time.Duration
	}
	var toCache []pending
	now := c.now()
	revoked := 0

	c.mu.Lock()
	for id := range index[key] {
		rec, ok := c.records[id]
		if !ok || rec.Revoked {
			continue
		}
		rec.Revoked = true
		revoked++
		if ttl := rec.ExpiresAt.Sub(now); ttl > 0 {
			toCache = append(toCache, pending{id: id, ttl: ttl})
		}
	}
	c.mu.Unlock()

	if c.cache != nil {
		for _, p := range toCache {
			_ = c.cache.Put(ctx, revocationCache, p.id, "1", p.ttl)
		}
	}
	return revoked
}

// SweepExpired drops expired records and their index entries, returning
// how many were removed. The Guard runs this from its background sweeper.
func (c *Codec) SweepExpired() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for id, rec := range c.records {
		if now.Before(rec.ExpiresAt) {
			continue
		}
		delete(c.records, id)
		indexRemove(c.bySession, rec.SessionID, id)
		indexRemove(c.byUser, rec.Subject, id)
		removed++
	}
	c.mu.Unlock()
	return removed
}

// ActiveCount returns the number of live (unrevoked, unexpired) records.
func (c *Codec) ActiveCount() int {
	now := c.now()
	n := 0

	c.mu.RLock()
	for _, rec := range c.records {
		if !rec.Revoked && now.Before(rec.ExpiresAt) {
			n++
		}
	}
	c.mu.RUnlock()
	return n
}

func indexAdd(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func indexRemove(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
