package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campuskit/authcore/internal/audit"
	"github.com/campuskit/authcore/internal/metrics"
	"github.com/campuskit/authcore/password"
)

// passwordHistory remembers recent hashes per user for reuse rejection.
// Depth-bounded and in-process; history older than the retained window
// is simply forgotten.
type passwordHistory struct {
	depth int

	mu      sync.Mutex
	entries map[string][]string
}

func newPasswordHistory(depth int) *passwordHistory {
	return &passwordHistory{
		depth:   depth,
		entries: make(map[string][]string),
	}
}

func (h *passwordHistory) remember(username, hash string) {
	if h.depth <= 0 || hash == "" {
		return
	}
	h.mu.Lock()
	hashes := append(h.entries[username], hash)
	if len(hashes) > h.depth {
		hashes = hashes[len(hashes)-h.depth:]
	}
	h.entries[username] = hashes
	h.mu.Unlock()
}

func (h *passwordHistory) recent(username string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries[username]...)
}

// ChangePassword verifies the current password, enforces strength and
// reuse policy on the new one, persists the new hash, and ends every
// session the user holds. The user logs in again with the new password.
func (g *Guard) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if g.closed.Load() {
		return ErrGuardClosed
	}

	user, err := g.directory.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("directory lookup: %w", err)
	}
	if !g.hasher.Verify(ctx, oldPassword, user.PasswordHash) {
		g.emit(ctx, AuditEvent{
			EventType: audit.EventPasswordRejected,
			Username:  username,
			Error:     "wrong current password",
		})
		return ErrInvalidCredentials
	}

	if err := g.checkNewPassword(ctx, user, newPassword); err != nil {
		g.counters.Inc(metrics.PasswordRejected)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventPasswordRejected,
			Username:  username,
			Error:     err.Error(),
		})
		return err
	}

	newHash, err := g.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := g.directory.UpdatePassword(ctx, username, newHash); err != nil {
		return fmt.Errorf("persist password: %w", err)
	}
	g.history.remember(username, user.PasswordHash)

	if user.PasswordExpired {
		if err := g.directory.MarkPasswordExpired(ctx, username, false); err != nil {
			return fmt.Errorf("clear password expiry: %w", err)
		}
	}

	// A changed password invalidates every credential derived from the
	// old one.
	if _, err := g.LogoutAll(ctx, username); err != nil {
		return err
	}

	g.counters.Inc(metrics.PasswordChanged)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventPasswordChanged,
		Username:  username,
		Success:   true,
	})
	return nil
}

// checkNewPassword enforces strength scoring and reuse policy.
func (g *Guard) checkNewPassword(ctx context.Context, user *UserRecord, newPassword string) error {
	strength := password.ValidateStrength(newPassword)
	if strength.Score < g.config.Password.MinScore || !strength.IsStrong {
		return ErrPasswordPolicy
	}

	if g.hasher.Verify(ctx, newPassword, user.PasswordHash) {
		return ErrPasswordReuse
	}
	for _, oldHash := range g.history.recent(user.Username) {
		if g.hasher.Verify(ctx, newPassword, oldHash) {
			return ErrPasswordReuse
		}
	}
	return nil
}

// ResetPassword lets a privileged actor set a temporary password on the
// target account. The actor's access token must carry the
// user_management:reset_password permission. The temporary password is
// returned exactly once, is marked expired so the target must change it
// at first login, and every session the target holds is ended.
func (g *Guard) ResetPassword(ctx context.Context, actorToken, targetUsername string) (string, error) {
	if g.closed.Load() {
		return "", ErrGuardClosed
	}

	const required = "user_management:reset_password"
	actor, _, err := g.resolveAccess(ctx, actorToken)
	if err != nil {
		return "", err
	}
	if !g.access.HasPermission(actor.Role, required) {
		g.counters.Inc(metrics.AccessDenied)
		g.emit(ctx, AuditEvent{
			EventType: audit.EventAccessDenied,
			Username:  actor.Subject,
			Role:      string(actor.Role),
			Error:     "requires " + required,
		})
		return "", &AccessDeniedError{Username: actor.Subject, Permission: required}
	}

	target, err := g.directory.FindByUsername(ctx, targetUsername)
	if err != nil {
		return "", err
	}

	temp, err := password.GenerateSecure(16)
	if err != nil {
		return "", err
	}
	hash, err := g.hasher.Hash(ctx, temp)
	if err != nil {
		return "", err
	}
	if err := g.directory.UpdatePassword(ctx, targetUsername, hash); err != nil {
		return "", fmt.Errorf("persist password: %w", err)
	}
	if err := g.directory.MarkPasswordExpired(ctx, targetUsername, true); err != nil {
		return "", fmt.Errorf("mark password expired: %w", err)
	}
	g.history.remember(targetUsername, target.PasswordHash)

	if _, err := g.LogoutAll(ctx, targetUsername); err != nil {
		return "", err
	}

	g.counters.Inc(metrics.PasswordReset)
	g.emit(ctx, AuditEvent{
		EventType: audit.EventPasswordReset,
		Username:  targetUsername,
		Success:   true,
		Metadata:  map[string]string{"actor": actor.Subject},
	})
	return temp, nil
}
