package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresDirectory(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "user directory") {
		t.Fatalf("error = %v, want user directory required", err)
	}
}

func TestBuildValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Secret = nil
	_, err := New().WithConfig(cfg).WithUserDirectory(newMemoryDirectory()).Build()
	if err == nil {
		t.Fatal("Build accepted a config without a secret")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserDirectory(newMemoryDirectory())
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer g.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build succeeded")
	}
}

func TestRedisCachePropagatesState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newGuardFixture(t, nil, func(b *Builder) { b.WithRedis(client) })
	g := f.guard

	ctx := context.Background()
	res := login(t, f, "msmith", testUserPassword, "10.0.0.1")

	// Session liveness is mirrored into the shared cache.
	if !mr.Exists("authcore:session:" + res.Session.ID) {
		t.Fatal("session not mirrored to redis")
	}

	if err := g.Logout(ctx, res.Access.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The mirror is gone and the revocations are published.
	if mr.Exists("authcore:session:" + res.Session.ID) {
		t.Fatal("session mirror survived logout")
	}
	if !mr.Exists("authcore:token_revoked:"+res.Access.ID) ||
		!mr.Exists("authcore:token_revoked:"+res.Refresh.ID) {
		t.Fatal("revocations not published to redis")
	}

	// The published token is refused here too.
	if _, err := g.AuthenticateWithToken(ctx, res.Access.Token, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token accepted: %v", err)
	}
}
