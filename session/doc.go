// Package session tracks authenticated presences with idle expiry and
// per-user concurrency caps.
//
// The registry is the authoritative store: an in-process table guarded
// by a single mutex. The per-user cap is checked inside the same
// critical section that inserts a new session, so two simultaneous
// logins for a user at the cap cannot both slip through. Idle sessions
// die lazily on access and eagerly via Sweep.
//
// Every removal, whatever the trigger, runs the registered RemovalHook
// before control returns to the caller. The owning Guard points that
// hook at token revocation, which is the invariant that keeps "session
// gone" and "tokens dead" a single event.
//
// # Architecture boundaries
//
// The registry does not authenticate anyone and does not inspect
// tokens. It is handed an already-verified identity and manages only
// its lifetime.
package session
