package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campuskit/authcore/cache"
	"github.com/campuskit/authcore/internal/audit"
	"github.com/campuskit/authcore/internal/limiters"
	"github.com/campuskit/authcore/internal/metrics"
	"github.com/campuskit/authcore/password"
	"github.com/campuskit/authcore/rbac"
	"github.com/campuskit/authcore/session"
	"github.com/campuskit/authcore/token"
)

// Guard is the authentication and authorization core. It owns the
// defense layers, credential verification, session lifecycle, token
// issuance, and permission checks, and exposes them as a single façade.
//
// Construct one through New().Build(); the zero value is not usable.
type Guard struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	directory UserDirectory
	mfa       MFAVerifier
	access    *rbac.Access

	hasher   *password.Hasher
	codec    *token.Codec
	sessions *session.Registry
	tracker  *limiters.AttemptTracker
	ipblock  *limiters.IPBlocker
	throttle *limiters.Throttle

	auditor  *audit.Dispatcher
	counters *metrics.Set
	history  *passwordHistory
	cache    cache.Cache

	closed    atomic.Bool
	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// Access returns the guard's authorization table for direct queries and
// runtime grants.
func (g *Guard) Access() *rbac.Access { return g.access }

// Authenticate runs the full login pipeline: throttle, IP block,
// account lockout, credential verification, account status, password
// age, then session creation and token issuance. The checks run in that
// order so a locked account answers "locked" even to the correct
// password, and a blocked address learns nothing about the account.
//
// When an MFA verifier is configured this returns ErrMFARequired after
// the password verifies; complete the login with AuthenticateWithMFA.
func (g *Guard) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	user, err := g.verifyPassword(ctx, creds)
	if err != nil {
		return nil, err
	}
	if g.mfa != nil {
		return nil, ErrMFARequired
	}
	return g.establish(ctx, user, creds)
}

// AuthenticateWithMFA is Authenticate plus second-factor verification.
// The factor is only consulted after the password verifies, so MFA
// failures count as login failures against both defense layers.
func (g *Guard) AuthenticateWithMFA(ctx context.Context, creds Credentials, code, method string) (*AuthResult, error) {
	user, err := g.verifyPassword(ctx, creds)
	if err != nil {
		return nil, err
	}
	if g.mfa == nil {
		return nil, errors.New("no mfa verifier configured")
	}

	ok, err := g.mfa.Verify(ctx, creds.Username, code, method)
	if err != nil {
		return nil, fmt.Errorf("mfa verification: %w", err)
	}
	if !ok {
		g.tracker.RecordFailure(creds.Username)
		g.ipblock.RecordFailure(creds.IP)
		g.counters.Inc(metrics.MFAFailure)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventMFAFailure,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return nil, ErrMFAInvalid
	}

	g.counters.Inc(metrics.MFASuccess)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventMFASuccess,
		Username:  creds.Username,
		IP:        creds.IP,
		Success:   true,
	})
	return g.establish(ctx, user, creds)
}

// verifyPassword runs every pre-session check and returns the directory
// record on success. It owns failure accounting for both defense
// layers.
func (g *Guard) verifyPassword(ctx context.Context, creds Credentials) (*UserRecord, error) {
	if g.closed.Load() {
		return nil, ErrGuardClosed
	}

	if !g.throttle.Allow(creds.IP) {
		g.counters.Inc(metrics.LoginThrottled)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventLoginThrottled,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return nil, ErrThrottled
	}

	if blocked, until := g.ipblock.Check(creds.IP); blocked {
		g.counters.Inc(metrics.IPBlocked)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventIPBlocked,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return nil, &IPBlockError{IP: creds.IP, Until: until}
	}

	// Lockout answers before credentials are even looked at, so a
	// locked account is locked for the right password too.
	if locked, until := g.tracker.Check(creds.Username); locked {
		g.counters.Inc(metrics.LoginLocked)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventLoginLocked,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return nil, &LockoutError{Username: creds.Username, Until: until}
	}

	user, err := g.directory.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, g.loginFailure(ctx, creds, "unknown user")
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	if !g.hasher.Verify(ctx, creds.Password, user.PasswordHash) {
		return nil, g.loginFailure(ctx, creds, "wrong password")
	}

	// Status rejections count as failed attempts too, but keep their
	// specific error instead of folding into the lockout response.
	if user.Disabled {
		g.recordFailure(creds)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventLoginFailure,
			Username:  creds.Username,
			IP:        creds.IP,
			Error:     "account disabled",
		})
		return nil, ErrAccountDisabled
	}
	if user.Expired {
		g.recordFailure(creds)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventLoginFailure,
			Username:  creds.Username,
			IP:        creds.IP,
			Error:     "account expired",
		})
		return nil, ErrAccountExpired
	}

	if g.passwordExpired(user) {
		g.recordFailure(creds)
		return nil, &PasswordExpiredError{Username: user.Username, ChangedAt: user.PasswordChangedAt}
	}

	g.maybeUpgradeHash(ctx, user, creds.Password)
	return user, nil
}

// recordFailure charges both defense layers without changing what the
// caller returns.
func (g *Guard) recordFailure(creds Credentials) {
	g.tracker.RecordFailure(creds.Username)
	g.ipblock.RecordFailure(creds.IP)
	g.counters.Inc(metrics.LoginFailure)
}

// loginFailure records a failed attempt against both defense layers and
// returns the error the caller should surface. Crossing the lockout
// threshold surfaces the lock immediately.
func (g *Guard) loginFailure(ctx context.Context, creds Credentials, reason string) error {
	locked, until := g.tracker.RecordFailure(creds.Username)
	blocked, blockedUntil := g.ipblock.RecordFailure(creds.IP)

	g.counters.Inc(metrics.LoginFailure)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventLoginFailure,
		Username:  creds.Username,
		IP:        creds.IP,
		Error:     reason,
	})

	if locked {
		g.counters.Inc(metrics.LoginLocked)
		g.logger.Warn("account locked",
			slog.String("username", creds.Username),
			slog.Time("until", until))
		g.emit(ctx, AuditEvent{
			EventType: audit.EventLoginLocked,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return &LockoutError{Username: creds.Username, Until: until}
	}
	if blocked {
		g.counters.Inc(metrics.IPBlocked)
		g.logger.Warn("ip blocked",
			slog.String("ip", creds.IP),
			slog.Time("until", blockedUntil))
		g.emit(ctx, AuditEvent{
			EventType: audit.EventIPBlocked,
			Username:  creds.Username,
			IP:        creds.IP,
		})
		return &IPBlockError{IP: creds.IP, Until: blockedUntil}
	}
	return ErrInvalidCredentials
}

func (g *Guard) passwordExpired(user *UserRecord) bool {
	if user.PasswordExpired {
		return true
	}
	maxAge := g.config.Password.MaxAge
	if maxAge <= 0 || user.PasswordChangedAt.IsZero() {
		return false
	}
	return g.now().Sub(user.PasswordChangedAt) >= maxAge
}

// maybeUpgradeHash re-hashes the password when the stored record is
// weaker than current parameters. Best effort; login proceeds either
// way.
func (g *Guard) maybeUpgradeHash(ctx context.Context, user *UserRecord, plaintext string) {
	if !g.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	newHash, err := g.hasher.Hash(ctx, plaintext)
	if err != nil {
		return
	}
	if err := g.directory.UpdatePassword(ctx, user.Username, newHash); err != nil {
		g.logger.Warn("password hash upgrade failed",
			slog.String("username", user.Username),
			slog.Any("error", err))
		return
	}
	user.PasswordHash = newHash
}

// establish creates the session and issues the token pair.
func (g *Guard) establish(ctx context.Context, user *UserRecord, creds Credentials) (*AuthResult, error) {
	sess, err := g.sessions.Create(ctx, user.Username, user.Role, creds.IP, creds.UserAgent, creds.RememberMe)
	if err != nil {
		if errors.Is(err, session.ErrLimitExceeded) {
			g.recordFailure(creds)
			return nil, &SessionLimitError{Username: user.Username, Limit: g.config.Session.MaxPerUser}
		}
		return nil, err
	}

	access, err := g.codec.Generate(user.Username, user.Role, sess.ID, token.TypeAccess)
	if err != nil {
		g.sessions.Remove(ctx, sess.ID)
		return nil, err
	}
	refreshType := token.TypeRefresh
	if creds.RememberMe {
		refreshType = token.TypeRememberMe
	}
	refresh, err := g.codec.Generate(user.Username, user.Role, sess.ID, refreshType)
	if err != nil {
		g.sessions.Remove(ctx, sess.ID)
		return nil, err
	}

	// Only a fully established login clears the failure history.
	g.tracker.Reset(creds.Username)

	g.counters.Inc(metrics.LoginSuccess)
	g.counters.Inc(metrics.SessionCreated)
	g.counters.Add(metrics.TokenIssued, 2)
	g.logger.Info("login",
		slog.String("username", user.Username),
		slog.String("session", sess.ID),
		slog.String("role", string(user.Role)))
	g.emit(ctx, AuditEvent{
		EventType: audit.EventLoginSuccess,
		Username:  user.Username,
		Role:      string(user.Role),
		SessionID: sess.ID,
		IP:        creds.IP,
		Success:   true,
	})

	return &AuthResult{User: user, Session: sess, Access: access, Refresh: refresh}, nil
}

// AuthenticateWithToken admits a request bearing an access token. It
// checks signature, lifetime, revocation, token type, session liveness,
// and (when configured) address consistency, re-resolves the account
// against the directory, then slides the session's idle window. A
// token whose account has since been disabled or expired is worthless.
func (g *Guard) AuthenticateWithToken(ctx context.Context, tokenString, ip string) (*AuthResult, error) {
	if g.closed.Load() {
		return nil, ErrGuardClosed
	}

	rec, sess, err := g.resolveAccess(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	if g.config.Token.BindIP && ip != "" && sess.IP != "" && sess.IP != ip {
		g.counters.Inc(metrics.TokenRejected)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventTokenRejected,
			Username:  rec.Subject,
			SessionID: sess.ID,
			IP:        ip,
			Error:     "address mismatch",
		})
		return nil, &InvalidTokenError{Reason: "address mismatch"}
	}

	user, err := g.directory.FindByUsername(ctx, rec.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = g.codec.Revoke(ctx, rec.ID)
			return nil, &InvalidTokenError{Reason: "unknown user"}
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	if user.Disabled || user.Expired {
		// The session and everything bound to it goes with the account.
		g.sessions.Remove(ctx, sess.ID)
		if user.Disabled {
			return nil, ErrAccountDisabled
		}
		return nil, ErrAccountExpired
	}

	if err := g.sessions.Touch(ctx, sess.ID); err != nil {
		return nil, &InvalidTokenError{Reason: "session expired"}
	}

	return &AuthResult{
		User:    user,
		Session: sess,
		Access:  rec,
	}, nil
}

// resolveAccess validates an access token and resolves its live
// session.
func (g *Guard) resolveAccess(ctx context.Context, tokenString string) (*token.Record, *session.Session, error) {
	rec, err := g.codec.Validate(ctx, tokenString)
	if err != nil {
		g.counters.Inc(metrics.TokenRejected)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventTokenRejected,
			Error:     err.Error(),
		})
		var invalid *token.InvalidError
		if errors.As(err, &invalid) {
			return nil, nil, &InvalidTokenError{Reason: invalid.Reason}
		}
		return nil, nil, &InvalidTokenError{Reason: "rejected"}
	}
	if rec.Type != token.TypeAccess {
		g.counters.Inc(metrics.TokenRejected)
		return nil, nil, &InvalidTokenError{Reason: "not an access token"}
	}

	sess, err := g.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		g.counters.Inc(metrics.TokenRejected)
		return nil, nil, &InvalidTokenError{Reason: "session expired"}
	}
	return rec, sess, nil
}

// Refresh exchanges a refresh or remember-me token for a new access
// token, rotating the refresh token itself once past the configured
// fraction of its lifetime. The bound session must still be alive and
// gets its idle window slid.
func (g *Guard) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if g.closed.Load() {
		return nil, ErrGuardClosed
	}

	result, err := g.codec.Refresh(ctx, refreshToken)
	if err != nil {
		g.counters.Inc(metrics.TokenRejected)
		var invalid *token.InvalidError
		if errors.As(err, &invalid) {
			return nil, &InvalidTokenError{Reason: invalid.Reason}
		}
		return nil, err
	}

	sess, err := g.sessions.Get(ctx, result.Access.SessionID)
	if err != nil {
		// Session died between validation and here; the freshly issued
		// tokens must not survive it.
		_ = g.codec.Revoke(ctx, result.Access.ID)
		_ = g.codec.Revoke(ctx, result.Refresh.ID)
		return nil, &InvalidTokenError{Reason: "session expired"}
	}

	// Long-lived refresh tokens outlive directory changes, so account
	// status is re-checked on every exchange.
	user, err := g.directory.FindByUsername(ctx, result.Access.Subject)
	if err != nil {
		_ = g.codec.Revoke(ctx, result.Access.ID)
		_ = g.codec.Revoke(ctx, result.Refresh.ID)
		if errors.Is(err, ErrUserNotFound) {
			return nil, &InvalidTokenError{Reason: "unknown user"}
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	if user.Disabled || user.Expired {
		// The session and everything bound to it goes with the account.
		g.sessions.Remove(ctx, sess.ID)
		if user.Disabled {
			return nil, ErrAccountDisabled
		}
		return nil, ErrAccountExpired
	}
	_ = g.sessions.Touch(ctx, sess.ID)

	g.counters.Inc(metrics.TokenRefreshed)
	if result.Rotated {
		g.counters.Inc(metrics.TokenRotated)
	}
	g.emit(ctx, AuditEvent{
		EventType: audit.EventTokenRefreshed,
		Username:  result.Access.Subject,
		SessionID: sess.ID,
		Success:   true,
		Metadata:  map[string]string{"rotated": fmt.Sprintf("%t", result.Rotated)},
	})

	return &AuthResult{
		User:    user,
		Session: sess,
		Access:  result.Access,
		Refresh: result.Refresh,
	}, nil
}

// Authorize checks that the bearer of the access token holds the
// permission, applying any contextual rule registered for it. rc may be
// nil when the permission has no contextual dimension.
func (g *Guard) Authorize(ctx context.Context, tokenString, permission string, rc rbac.Context) error {
	if g.closed.Load() {
		return ErrGuardClosed
	}

	rec, sess, err := g.resolveAccess(ctx, tokenString)
	if err != nil {
		return err
	}

	if !g.access.HasPermissionWithContext(rec.Role, permission, rc) {
		g.counters.Inc(metrics.AccessDenied)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventAccessDenied,
			Username:  rec.Subject,
			Role:      string(rec.Role),
			SessionID: sess.ID,
			Error:     "requires " + permission,
		})
		return &AccessDeniedError{Username: rec.Subject, Permission: permission}
	}
	return nil
}

// Logout tears down the session behind the access token. Every token
// bound to the session dies with it. Logging out with an already dead
// token is an error; logout of a live session always succeeds.
func (g *Guard) Logout(ctx context.Context, tokenString string) error {
	if g.closed.Load() {
		return ErrGuardClosed
	}

	rec, sess, err := g.resolveAccess(ctx, tokenString)
	if err != nil {
		return err
	}

	g.sessions.Remove(ctx, sess.ID)
	g.counters.Inc(metrics.Logout)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventLogout,
		Username:  rec.Subject,
		SessionID: sess.ID,
		Success:   true,
	})
	return nil
}

// LogoutAll ends every session and revokes every token for the user,
// returning how many sessions were ended. Used on password change,
// administrative resets, and compromise response.
func (g *Guard) LogoutAll(ctx context.Context, username string) (int, error) {
	if g.closed.Load() {
		return 0, ErrGuardClosed
	}

	removed := g.sessions.RemoveAllForUser(ctx, username)
	// Session hooks revoked session-bound tokens; this catches any
	// stragglers issued outside a live session.
	g.codec.RevokeByUser(ctx, username)

	g.counters.Inc(metrics.LogoutAll)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventLogoutAll,
		Username:  username,
		Success:   true,
		Metadata:  map[string]string{"sessions": fmt.Sprintf("%d", removed)},
	})
	return removed, nil
}

// ActiveSessions lists the user's live sessions, most recently used
// first.
func (g *Guard) ActiveSessions(username string) []*session.Session {
	return g.sessions.UserSessions(username)
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (g *Guard) MetricsSnapshot() metrics.Snapshot {
	return g.counters.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (g *Guard) AuditDropped() uint64 {
	return g.auditor.Dropped()
}

// Close stops the background sweeper and drains the audit dispatcher.
// Subsequent operations return ErrGuardClosed.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		close(g.stopSweep)
		<-g.sweepDone
		g.auditor.Close()
	})
}

func (g *Guard) emit(ctx context.Context, event AuditEvent) {
	if g.auditor == nil {
		return
	}
	event.Timestamp = g.now()
	g.auditor.Emit(ctx, event)
}

func (g *Guard) sweepLoop() {
	defer close(g.sweepDone)

	ticker := time.NewTicker(g.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stopSweep:
			return
		}
	}
}

// sweep reaps expired state across every component. Lazy expiry keeps
// behavior correct between runs; this bounds memory.
func (g *Guard) sweep() {
	ctx := context.Background()

	expiredSessions := g.sessions.Sweep(ctx)
	expiredTokens := g.codec.SweepExpired()
	g.tracker.Sweep()
	g.ipblock.Sweep()
	g.throttle.Sweep(30 * time.Minute)
	if mem, ok := g.cache.(*cache.Memory); ok {
		mem.Sweep()
	}

	g.counters.Add(metrics.SessionExpired, uint64(expiredSessions))
	if expiredSessions > 0 || expiredTokens > 0 {
		g.logger.Debug("sweep complete",
			slog.Int("sessions", expiredSessions),
			slog.Int("tokens", expiredTokens))
	}
}
