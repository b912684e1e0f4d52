// Package password implements salted iterative password hashing, strength
// scoring, and secure password generation.
//
// # Output format
//
// Hashes are encoded as a colon-separated record:
//
//	pbkdf2-sha256:<iterations>:<saltB64>:<hashB64>
//
// Verification is total: any unparseable or unsupported record verifies as
// false rather than surfacing an error. [Hasher.NeedsUpgrade] reports when a
// stored record was produced with weaker parameters than the current
// configuration so callers can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, scoring, and generation only. Password policy
// enforcement (reuse history, expiration) belongs to the Guard, and record
// persistence belongs to the user directory collaborator.
package password
