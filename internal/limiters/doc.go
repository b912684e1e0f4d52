// Package limiters implements the brute-force defenses that run before
// credential verification: a per-account lockout tracker, a per-address
// blocker for spraying attacks, and a per-address request throttle.
//
// All three are in-process, mutex-guarded, and clock-injected. State is
// reaped lazily on access and eagerly by the owning Guard's background
// sweeper.
package limiters
