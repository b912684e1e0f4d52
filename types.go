package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/authcore/rbac"
	"github.com/campuskit/authcore/session"
	"github.com/campuskit/authcore/token"
)

// ErrUserNotFound is what a UserDirectory returns for an unknown
// username. The guard folds it into ErrInvalidCredentials before it
// reaches callers.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is the directory's view of an account. The guard never
// stores these; it fetches on demand and trusts the directory as the
// source of truth.
type UserRecord struct {
	Username          string
	Role              rbac.Role
	PasswordHash      string
	Disabled          bool
	Expired           bool
	PasswordChangedAt time.Time

	// PasswordExpired forces a change on next login regardless of age,
	// set by administrative resets.
	PasswordExpired bool
}

// UserDirectory is the host application's account store. Implementations
// must be safe for concurrent use.
type UserDirectory interface {
	// FindByUsername returns ErrUserNotFound for unknown accounts.
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)

	// UpdatePassword persists a new password hash.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// MarkPasswordExpired sets or clears the forced-change flag.
	MarkPasswordExpired(ctx context.Context, username string, expired bool) error
}

// MFAVerifier checks a second factor. The guard treats it as a black
// box; TOTP, SMS, or hardware keys are the host's business.
type MFAVerifier interface {
	Verify(ctx context.Context, username, code, method string) (bool, error)
}

// Credentials is a login request.
type Credentials struct {
	Username string
	Password string

	// IP and UserAgent feed the defense layers and the session record.
	IP        string
	UserAgent string

	// RememberMe requests a long-lived refresh token.
	RememberMe bool
}

// AuthResult is a successful authentication: the directory record, the
// live session, and the issued tokens. Refresh is nil for token-based
// authentication, which issues nothing new.
type AuthResult struct {
	User    *UserRecord
	Session *session.Session
	Access  *token.Record
	Refresh *token.Record
}
