package password

import (
	"context"
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{
		Iterations: 10_000,
		SaltLength: 32,
		KeyLength:  32,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher(t)
	ctx := context.Background()

	encoded, err := h.Hash(ctx, "Tr0ub4dor&3horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "pbkdf2-sha256:10000:") {
		t.Fatalf("unexpected record prefix: %s", encoded)
	}
	if !h.Verify(ctx, "Tr0ub4dor&3horse", encoded) {
		t.Fatal("correct password did not verify")
	}
	if h.Verify(ctx, "Tr0ub4dor&3horsf", encoded) {
		t.Fatal("wrong password verified")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := testHasher(t)
	ctx := context.Background()

	a, err := h.Hash(ctx, "same-password-1!X")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash(ctx, "same-password-1!X")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password were identical")
	}
}

func TestVerifyMalformedRecords(t *testing.T) {
	h := testHasher(t)
	ctx := context.Background()

	for _, encoded := range []string{
		"",
		"not-a-record",
		"pbkdf2-sha256:10000:salt",
		"argon2id:1:2:3",
		"pbkdf2-sha256:zero:c2FsdA==:aGFzaA==",
		"pbkdf2-sha256:10000:!!!:aGFzaA==",
		"pbkdf2-sha256:10000:c2FsdA==:!!!",
	} {
		if h.Verify(ctx, "whatever", encoded) {
			t.Fatalf("malformed record verified: %q", encoded)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, err := NewHasher(Config{Iterations: 10_000, SaltLength: 32, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	strong, err := NewHasher(Config{Iterations: 50_000, SaltLength: 32, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	encoded, err := weak.Hash(context.Background(), "upgrade-me-1!Xy")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if weak.NeedsUpgrade(encoded) {
		t.Fatal("record at current parameters reported as needing upgrade")
	}
	if !strong.NeedsUpgrade(encoded) {
		t.Fatal("weaker record not reported as needing upgrade")
	}
	if !strong.NeedsUpgrade("garbage") {
		t.Fatal("unparseable record should always need upgrade")
	}
}

func TestNewHasherRejectsWeakParameters(t *testing.T) {
	cases := []Config{
		{Iterations: 9_999, SaltLength: 32, KeyLength: 32},
		{Iterations: 10_000, SaltLength: 16, KeyLength: 32},
		{Iterations: 10_000, SaltLength: 32, KeyLength: 8},
	}
	for _, cfg := range cases {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("NewHasher accepted weak config %+v", cfg)
		}
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := testHasher(t)
	if _, err := h.Hash(context.Background(), ""); err == nil {
		t.Fatal("empty password accepted")
	}
}
