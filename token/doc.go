// Package token issues and validates compact HS256-signed tokens with
// server-side revocation.
//
// # Wire format
//
// Tokens are standard three-segment JWS compact serialization:
// base64url(header).base64url(payload).base64url(signature), header
// {"alg":"HS256","typ":"JWT"}. The payload carries jti, sub, iss, iat,
// exp, plus private claims role, sid (session binding), and type
// (ACCESS, REFRESH, or REMEMBER_ME).
//
// # Statefulness
//
// Unlike pure bearer-token schemes, every issued token has a server-side
// Record keyed by jti. A token is only accepted when its signature and
// lifetime check out AND its record is present and unrevoked, which is
// what makes instant revocation (single token, whole session, or whole
// user) possible. Expired records are dropped by SweepExpired.
//
// # Architecture boundaries
//
// The codec binds tokens to session IDs but does not know whether a
// session is alive. The session registry's removal hook calls
// RevokeBySession so the two stay consistent; the Guard owns that
// wiring.
package token
