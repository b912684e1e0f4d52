// Package authcore is an embeddable authentication and authorization
// core: password verification with lockout and IP-block defenses,
// stateful HS256 token issuance with rotation and instant revocation,
// session lifecycle with per-user concurrency caps, and hierarchical
// role-based access control with contextual rules.
//
// The host application supplies a [UserDirectory] (its account store)
// and talks to a single façade, the [Guard]:
//
//	guard, err := authcore.New().
//		WithSecret(secret).
//		WithUserDirectory(dir).
//		Build()
//	if err != nil {
//		...
//	}
//	defer guard.Close()
//
//	result, err := guard.Authenticate(ctx, authcore.Credentials{
//		Username: "msmith",
//		Password: pw,
//		IP:       remoteIP,
//	})
//
// All state is held in-process and guarded by mutexes; an optional
// Redis-backed cache ([Builder.WithRedis]) propagates revocations and
// session liveness to sibling processes but is never the source of
// truth. Failure modes surface as sentinel errors (ErrAccountLocked,
// ErrInvalidToken, ...) with typed wrappers carrying detail, so callers
// branch with errors.Is and inspect with errors.As.
//
// Subpackages hold the parts: password (hashing and strength), token
// (codec), session (registry), rbac (permissions), cache (accelerator),
// metrics/export/prometheus (scrape integration).
package authcore
