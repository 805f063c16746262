package password

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var ErrEmptyPassword = errors.New("password cannot be empty")

type Config struct {
	Cost        int
	Concurrency int
}

type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

// Hash returns a salted bcrypt digest of the pre-hashed password. Two calls
// with the same input never return the same digest.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword(preHash(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}

	return string(digest), nil
}

// Verify reports whether plain matches digest. Empty input, a malformed
// digest and a cancelled context all read as a mismatch.
func (h *Hasher) Verify(ctx context.Context, plain, digest string) bool {
	if plain == "" || digest == "" {
		return false
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), preHash(plain)) == nil
}

func preHash(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	encoded := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(encoded, sum[:])
	return encoded
}
