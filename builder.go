package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/authcore/cache"
	"github.com/campuskit/authcore/internal/audit"
	"github.com/campuskit/authcore/internal/limiters"
	"github.com/campuskit/authcore/internal/metrics"
	"github.com/campuskit/authcore/password"
	"github.com/campuskit/authcore/rbac"
	"github.com/campuskit/authcore/session"
	"github.com/campuskit/authcore/token"
)

// Builder assembles a Guard. A Builder is single-use: Build consumes it.
type Builder struct {
	config Config

	directory   UserDirectory
	redisClient redis.UniversalClient
	cacheImpl   cache.Cache
	auditSink   AuditSink
	logger      *slog.Logger
	clock       func() time.Time
	mfa         MFAVerifier
	access      *rbac.Access

	built bool
}

// New starts a builder with DefaultConfig. The token secret and a user
// directory must still be supplied.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSecret sets the token signing key without touching the rest of the
// configuration.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = append([]byte(nil), secret...)
	return b
}

// WithUserDirectory sets the account store. Required.
func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithRedis attaches a Redis client used as a shared cache accelerator
// for revocation propagation and session liveness. Optional; everything
// works without it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redisClient = client
	return b
}

// WithCache attaches an explicit cache implementation, overriding the
// one WithRedis would derive.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cacheImpl = c
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock injects a clock, used by tests to drive expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMFAVerifier enables two-phase login. When set, password-only
// authentication returns ErrMFARequired.
func (b *Builder) WithMFAVerifier(v MFAVerifier) *Builder {
	b.mfa = v
	return b
}

// WithAccess replaces the default role hierarchy.
func (b *Builder) WithAccess(a *rbac.Access) *Builder {
	b.access = a
	return b
}

// Build validates the configuration, wires the components, starts the
// background sweeper, and returns the Guard.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	cfg := b.config
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "authcore")

	cacheImpl := b.cacheImpl
	if cacheImpl == nil && b.redisClient != nil {
		cacheImpl = cache.NewRedis(b.redisClient, "authcore")
	}

	hasher, err := password.NewHasher(password.Config{
		Iterations:    cfg.Password.Iterations,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	var codecOpts []token.Option
	if cacheImpl != nil {
		codecOpts = append(codecOpts, token.WithCache(cacheImpl))
	}
	codec, err := token.NewCodec(token.Config{
		Secret:              cfg.Token.Secret,
		Issuer:              cfg.Token.Issuer,
		AccessTTL:           cfg.Token.AccessTTL,
		RefreshTTL:          cfg.Token.RefreshTTL,
		RememberMeTTL:       cfg.Token.RememberMeTTL,
		RotateAfterFraction: cfg.Token.RotateAfterFraction,
		Now:                 clock,
	}, codecOpts...)
	if err != nil {
		return nil, err
	}

	var counters *metrics.Set
	if cfg.MetricsEnabled {
		counters = metrics.NewSet()
	}

	// Session removal, whatever its cause, kills the session's tokens
	// before the removal returns. This hook is the single place that
	// invariant lives.
	var dispatcher *audit.Dispatcher
	if cfg.Audit.Enabled {
		dispatcher = audit.NewDispatcher(audit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	sessionOpts := []session.Option{
		session.WithClock(clock),
		session.WithRemovalHook(func(ctx context.Context, s *session.Session) {
			revoked := codec.RevokeBySession(ctx, s.ID)
			counters.Add(metrics.TokenRevoked, uint64(revoked))
		}),
		session.WithEvictionHook(func(ctx context.Context, s *session.Session) {
			counters.Inc(metrics.SessionEvicted)
			dispatcher.Emit(ctx, audit.Event{
				Timestamp: clock(),
				EventType: audit.EventSessionEvicted,
				Username:  s.Username,
				SessionID: s.ID,
				IP:        s.IP,
			})
		}),
	}
	if cacheImpl != nil {
		sessionOpts = append(sessionOpts, session.WithCache(cacheImpl))
	}
	registry, err := session.NewRegistry(session.Config{
		Timeout:       cfg.Session.Timeout,
		MaxPerUser:    cfg.Session.MaxPerUser,
		EvictOldest:   cfg.Session.EvictOldest,
		SweepInterval: cfg.SweepInterval,
	}, sessionOpts...)
	if err != nil {
		return nil, err
	}

	access := b.access
	if access == nil {
		access = rbac.New()
	}

	g := &Guard{
		config:    cfg,
		logger:    logger,
		now:       clock,
		directory: b.directory,
		mfa:       b.mfa,
		access:    access,
		hasher:    hasher,
		codec:     codec,
		sessions:  registry,
		tracker: limiters.NewAttemptTracker(limiters.LockoutConfig{
			MaxAttempts:  cfg.Lockout.MaxAttempts,
			Window:       cfg.Lockout.Window,
			LockDuration: cfg.Lockout.LockDuration,
		}, clock),
		ipblock: limiters.NewIPBlocker(limiters.IPBlockConfig{
			MaxAttempts:   cfg.IPBlock.MaxAttempts,
			Window:        cfg.IPBlock.Window,
			BlockDuration: cfg.IPBlock.BlockDuration,
		}, clock),
		throttle: limiters.NewThrottle(limiters.ThrottleConfig{
			RequestsPerSecond: cfg.Throttle.RequestsPerSecond,
			Burst:             cfg.Throttle.Burst,
		}, clock),
		auditor:   dispatcher,
		counters:  counters,
		history:   newPasswordHistory(cfg.Password.HistoryDepth),
		cache:     cacheImpl,
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	go g.sweepLoop()

	b.built = true
	return g, nil
}
