package metrics

import "sync/atomic"

// ID indexes one counter.
type ID uint16

const (
	LoginSuccess ID = iota
	LoginFailure
	LoginThrottled
	LoginLocked
	IPBlocked
	MFASuccess
	MFAFailure
	TokenIssued
	TokenRejected
	TokenRefreshed
	TokenRotated
	TokenRevoked
	SessionCreated
	SessionEvicted
	SessionExpired
	Logout
	LogoutAll
	PasswordChanged
	PasswordReset
	PasswordRejected
	AccessDenied
	idCount
)

var names = [idCount]string{
	LoginSuccess:     "login_success_total",
	LoginFailure:     "login_failure_total",
	LoginThrottled:   "login_throttled_total",
	LoginLocked:      "login_locked_total",
	IPBlocked:        "ip_blocked_total",
	MFASuccess:       "mfa_success_total",
	MFAFailure:       "mfa_failure_total",
	TokenIssued:      "token_issued_total",
	TokenRejected:    "token_rejected_total",
	TokenRefreshed:   "token_refreshed_total",
	TokenRotated:     "token_rotated_total",
	TokenRevoked:     "token_revoked_total",
	SessionCreated:   "session_created_total",
	SessionEvicted:   "session_evicted_total",
	SessionExpired:   "session_expired_total",
	Logout:           "logout_total",
	LogoutAll:        "logout_all_total",
	PasswordChanged:  "password_changed_total",
	PasswordReset:    "password_reset_total",
	PasswordRejected: "password_rejected_total",
	AccessDenied:     "access_denied_total",
}

// Name returns the stable exposition name for id, or "" for an unknown
// id.
func (id ID) Name() string {
	if id >= idCount {
		return ""
	}
	return names[id]
}

// Count is how many counters exist, for exporters iterating all IDs.
const Count = int(idCount)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Set is a fixed array of padded atomic counters. A nil *Set is valid
// and discards increments, which is how metrics are disabled.
type Set struct {
	counters [idCount]paddedCounter
}

// NewSet returns a zeroed counter set.
func NewSet() *Set {
	return &Set{}
}

// Inc adds one to the counter. Safe on nil and out-of-range IDs.
func (s *Set) Inc(id ID) {
	if s == nil || id >= idCount {
		return
	}
	atomic.AddUint64(&s.counters[id].value, 1)
}

// Add adds n to the counter. Safe on nil and out-of-range IDs.
func (s *Set) Add(id ID, n uint64) {
	if s == nil || id >= idCount {
		return
	}
	atomic.AddUint64(&s.counters[id].value, n)
}

// Value reads one counter.
func (s *Set) Value(id ID) uint64 {
	if s == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&s.counters[id].value)
}

// Snapshot is a point-in-time copy of every counter, keyed by ID.
type Snapshot map[ID]uint64

// Snapshot copies all counters. Values are read individually, so the
// snapshot is consistent per counter, not across counters.
func (s *Set) Snapshot() Snapshot {
	out := make(Snapshot, idCount)
	if s == nil {
		return out
	}
	for id := ID(0); id < idCount; id++ {
		out[id] = atomic.LoadUint64(&s.counters[id].value)
	}
	return out
}
