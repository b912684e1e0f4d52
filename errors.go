package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords
	// alike so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled rejects administratively disabled accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountExpired rejects accounts past their validity period.
	ErrAccountExpired = errors.New("account expired")
	// ErrAccountLocked rejects accounts under failed-attempt lockout.
	ErrAccountLocked = errors.New("account locked")
	// ErrIPBlocked rejects requests from a blocked source address.
	ErrIPBlocked = errors.New("ip blocked")
	// ErrThrottled rejects requests over the per-address rate limit.
	ErrThrottled = errors.New("too many requests")
	// ErrPasswordExpired means credentials were correct but the password
	// must be changed before a session is granted.
	ErrPasswordExpired = errors.New("password expired")
	// ErrSessionLimit means the user is at their concurrent session cap.
	ErrSessionLimit = errors.New("session limit exceeded")
	// ErrInvalidToken covers every token rejection reason.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccessDenied means the authenticated role lacks the permission.
	ErrAccessDenied = errors.New("access denied")
	// ErrMFARequired means password verification succeeded but a second
	// factor is still outstanding.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid means the presented second factor was wrong.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrPasswordPolicy means the new password failed strength scoring.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse means the new password matches a recent one.
	ErrPasswordReuse = errors.New("password recently used")
	// ErrGuardClosed rejects operations after Close.
	ErrGuardClosed = errors.New("guard closed")
)

// LockoutError carries when a locked account becomes usable again. It
// unwraps to ErrAccountLocked.
type LockoutError struct {
	Username string
	Until    time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// IPBlockError carries when a blocked address is released. It unwraps to
// ErrIPBlocked.
type IPBlockError struct {
	IP    string
	Until time.Time
}

func (e *IPBlockError) Error() string {
	return fmt.Sprintf("ip %s blocked until %s", e.IP, e.Until.Format(time.RFC3339))
}

func (e *IPBlockError) Unwrap() error { return ErrIPBlocked }

// PasswordExpiredError unwraps to ErrPasswordExpired.
type PasswordExpiredError struct {
	Username  string
	ChangedAt time.Time
}

func (e *PasswordExpiredError) Error() string {
	return "password expired, change required"
}

func (e *PasswordExpiredError) Unwrap() error { return ErrPasswordExpired }

// SessionLimitError unwraps to ErrSessionLimit.
type SessionLimitError struct {
	Username string
	Limit    int
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("session limit of %d reached", e.Limit)
}

func (e *SessionLimitError) Unwrap() error { return ErrSessionLimit }

// InvalidTokenError carries the rejection reason and unwraps to
// ErrInvalidToken.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

// AccessDeniedError names the permission that was required. It unwraps
// to ErrAccessDenied.
type AccessDeniedError struct {
	Username   string
	Permission string
}

func (e *AccessDeniedError) Error() string {
	return "access denied: requires " + e.Permission
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }
