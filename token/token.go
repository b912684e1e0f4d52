package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campuskit/authcore/rbac"
)

// Type distinguishes the three token lifetimes.
type Type string

const (
	TypeAccess     Type = "ACCESS"
	TypeRefresh    Type = "REFRESH"
	TypeRememberMe Type = "REMEMBER_ME"
)

// Default lifetimes per token type.
const (
	DefaultAccessTTL     = 60 * time.Minute
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
)

// ErrInvalid is the sentinel every validation failure unwraps to. The
// concrete reason travels in InvalidError but callers branch on this.
var ErrInvalid = errors.New("token: invalid")

// InvalidError carries the rejection reason for logs and audit trails.
// Validation is fail-closed: whatever the reason, the caller gets no
// claims back.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("token: invalid: %s", e.Reason)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Claims is the signed payload. Standard fields (jti, sub, iss, iat, exp)
// ride in RegisteredClaims; role, session binding, and type are private
// claims.
type Claims struct {
	Role      rbac.Role `json:"role"`
	SessionID string    `json:"sid"`
	TokenType Type      `json:"type"`
	jwt.RegisteredClaims
}

// Record is the server-side view of an issued token. The signed string is
// what clients hold; the record is what revocation and sweeping operate
// on.
type Record struct {
	ID        string
	Subject   string
	Role      rbac.Role
	SessionID string
	Type      Type
	IssuedAt  time.Time
	ExpiresAt time.Time
	LastUsed  time.Time
	Revoked   bool

	// Token is the compact signed form.
	Token string
}

// Config holds signing and lifetime parameters.
type Config struct {
	// Secret is the HS256 signing key. Required, 32 bytes minimum.
	Secret []byte

	// Issuer is stamped into iss and enforced on validation.
	Issuer string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration

	// RotateAfterFraction controls refresh rotation: a refresh token is
	// replaced once at least this fraction of its lifetime has elapsed.
	// 0 rotates on every use; negative disables rotation.
	RotateAfterFraction float64

	// Issuer clock, injectable for tests.
	Now func() time.Time
}

// DefaultConfig returns a Config with default lifetimes and midpoint
// refresh rotation. Secret must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		AccessTTL:           DefaultAccessTTL,
		RefreshTTL:          DefaultRefreshTTL,
		RememberMeTTL:       DefaultRememberMeTTL,
		RotateAfterFraction: 0.5,
	}
}

func (c Config) ttl(typ Type) (time.Duration, error) {
	switch typ {
	case TypeAccess:
		return c.AccessTTL, nil
	case TypeRefresh:
		return c.RefreshTTL, nil
	case TypeRememberMe:
		return c.RememberMeTTL, nil
	default:
		return 0, fmt.Errorf("token: unknown type %q", typ)
	}
}
