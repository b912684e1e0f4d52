package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"

	"crypto/sha256"
)

const (
	algorithmID = "pbkdf2-sha256"

	minIterations = 10_000
	minSaltLength = 32
	minKeyLength  = 16
)

// Config holds key-derivation parameters. Instances are configured during
// initialization and treated as immutable afterwards.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int

	// MaxConcurrent bounds how many derivations may run at once. Key
	// derivation is CPU-bound and must not occupy an unbounded number of
	// serving goroutines. 0 disables the bound.
	MaxConcurrent int64
}

// Hasher derives and verifies salted iterated password hashes in the
// serialized form "algorithm:iterations:saltB64:hashB64".
type Hasher struct {
	config Config
	sem    *semaphore.Weighted
}

// NewHasher validates cfg and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Iterations < minIterations {
		return nil, fmt.Errorf("password iterations must be >= %d", minIterations)
	}
	if cfg.SaltLength < minSaltLength {
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	}
	if cfg.KeyLength < minKeyLength {
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}

	h := &Hasher{config: cfg}
	if cfg.MaxConcurrent > 0 {
		h.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return h, nil
}

// Hash derives a new encoded record for password using a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)

	return fmt.Sprintf(
		"%s:%d:%s:%s",
		algorithmID,
		h.config.Iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the hash with the stored salt and iteration count and
// compares in constant time. It is total over its inputs: malformed or
// unsupported records return false, never an error or a panic.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) bool {
	parsed, err := parseRecord(encoded)
	if err != nil {
		return false
	}

	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	computed := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.hash), sha256.New)
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

// NeedsUpgrade reports whether the stored record is weaker than the
// hasher's current parameters. Unparseable records always need an upgrade.
func (h *Hasher) NeedsUpgrade(encoded string) bool {
	parsed, err := parseRecord(encoded)
	if err != nil {
		return true
	}
	if parsed.iterations < h.config.Iterations {
		return true
	}
	if len(parsed.hash) < h.config.KeyLength {
		return true
	}
	return false
}

func (h *Hasher) acquire(ctx context.Context) error {
	if h.sem == nil {
		return nil
	}
	return h.sem.Acquire(ctx, 1)
}

func (h *Hasher) release() {
	if h.sem != nil {
		h.sem.Release(1)
	}
}

type parsedRecord struct {
	iterations int
	salt       []byte
	hash       []byte
}

func parseRecord(encoded string) (*parsedRecord, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 4 {
		return nil, errors.New("invalid record format")
	}
	if parts[0] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return nil, errors.New("invalid iteration count")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, errors.New("invalid salt encoding")
	}

	hash, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(hash) == 0 {
		return nil, errors.New("invalid hash encoding")
	}

	return &parsedRecord{iterations: iterations, salt: salt, hash: hash}, nil
}
