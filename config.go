package authcore

import (
	"errors"
	"fmt"
	"time"
)

// PasswordConfig controls hashing cost and password policy.
type PasswordConfig struct {
	Iterations    int
	SaltLength    int
	KeyLength     int
	MaxConcurrent int64

	// MinScore is the minimum strength score (0..5) accepted for new
	// passwords.
	MinScore int

	// HistoryDepth is how many previous hashes are remembered per user
	// for reuse rejection. 0 disables history.
	HistoryDepth int

	// MaxAge forces a password change when the current password is
	// older than this. 0 disables age expiry.
	MaxAge time.Duration
}

// TokenConfig controls signing and lifetimes.
type TokenConfig struct {
	// Secret is the HS256 signing key, 32 bytes minimum.
	Secret []byte

	Issuer string

	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RememberMeTTL       time.Duration
	RotateAfterFraction float64

	// BindIP rejects access tokens presented from an address other than
	// the one the session was created from.
	BindIP bool
}

// SessionConfig controls the session registry.
type SessionConfig struct {
	Timeout     time.Duration
	MaxPerUser  int
	EvictOldest bool
}

// LockoutConfig controls per-account failed-attempt lockout.
type LockoutConfig struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// IPBlockConfig controls per-address failure blocking.
type IPBlockConfig struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// ThrottleConfig controls the per-address request throttle.
type ThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Config is the full guard configuration tree.
type Config struct {
	Password PasswordConfig
	Token    TokenConfig
	Session  SessionConfig
	Lockout  LockoutConfig
	IPBlock  IPBlockConfig
	Throttle ThrottleConfig
	Audit    AuditConfig

	MetricsEnabled bool

	// SweepInterval is the cadence of the background sweeper that reaps
	// expired sessions, tokens, and defense-layer state.
	SweepInterval time.Duration
}

// DefaultConfig returns production defaults. The token secret must
// still be provided.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Iterations:    600_000,
			SaltLength:    32,
			KeyLength:     32,
			MaxConcurrent: 16,
			MinScore:      4,
			HistoryDepth:  5,
			MaxAge:        0,
		},
		Token: TokenConfig{
			Issuer:              "authcore",
			AccessTTL:           60 * time.Minute,
			RefreshTTL:          7 * 24 * time.Hour,
			RememberMeTTL:       30 * 24 * time.Hour,
			RotateAfterFraction: 0.5,
		},
		Session: SessionConfig{
			Timeout: 60 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			Window:       15 * time.Minute,
			LockDuration: 15 * time.Minute,
		},
		IPBlock: IPBlockConfig{
			MaxAttempts:   20,
			Window:        10 * time.Minute,
			BlockDuration: time.Hour,
		},
		Throttle: ThrottleConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		MetricsEnabled: true,
		SweepInterval:  5 * time.Minute,
	}
}

// Validate rejects configurations the guard cannot run with.
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("config: token secret must be at least 32 bytes")
	}
	if c.Token.Issuer == "" {
		return errors.New("config: token issuer must not be empty")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.RememberMeTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.Session.Timeout <= 0 {
		return errors.New("config: session timeout must be positive")
	}
	if c.Session.MaxPerUser < 0 {
		return errors.New("config: session max per user must be >= 0")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("config: lockout max attempts must be >= 1")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.IPBlock.MaxAttempts < 1 {
		return errors.New("config: ip block max attempts must be >= 1")
	}
	if c.IPBlock.BlockDuration <= 0 {
		return errors.New("config: ip block duration must be positive")
	}
	if c.Password.MinScore < 0 || c.Password.MinScore > 5 {
		return fmt.Errorf("config: password min score must be in [0,5], got %d", c.Password.MinScore)
	}
	if c.Password.HistoryDepth < 0 {
		return errors.New("config: password history depth must be >= 0")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: sweep interval must be positive")
	}
	return nil
}
