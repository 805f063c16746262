// Package captcha owns the email one-time codes that gate registration and
// password reset, and the workflow that delivers them.
package captcha

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/CherryKingOne/WeiMeng/internal/cache"
)

const (
	CodeLength = 6
	DefaultTTL = 300 * time.Second
)

type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password-reset"
)

var ErrUnknownPurpose = errors.New("unknown captcha purpose")

func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposePasswordReset
}

// Code is a one-time code as issued. Expiry lives in the cache TTL only.
type Code struct {
	Email   string
	Code    string
	Purpose Purpose
	TTL     time.Duration
}

// Store keeps at most one live code per email. Codes are keyed by email
// alone, so issuing a reset code replaces a pending login code and the
// other way round.
type Store struct {
	cache cache.Cache
}

func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

func Key(email string) string {
	return "captcha:" + email
}

func (s *Store) Issue(ctx context.Context, email string, ttl time.Duration, purpose Purpose) (Code, error) {
	if !purpose.Valid() {
		return Code{}, ErrUnknownPurpose
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return Code{}, fmt.Errorf("generate captcha: %w", err)
	}

	if err := s.cache.Set(ctx, Key(email), code, ttl); err != nil {
		return Code{}, fmt.Errorf("store captcha: %w", err)
	}

	return Code{Email: email, Code: code, Purpose: purpose, TTL: ttl}, nil
}

func (s *Store) Peek(ctx context.Context, email string) (string, bool, error) {
	code, ok, err := s.cache.Get(ctx, Key(email))
	if err != nil {
		return "", false, fmt.Errorf("read captcha: %w", err)
	}
	return code, ok, nil
}

// Consume deletes the code and reports whether one was there.
func (s *Store) Consume(ctx context.Context, email string) (bool, error) {
	n, err := s.cache.Delete(ctx, Key(email))
	if err != nil {
		return false, fmt.Errorf("consume captcha: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	ok, err := s.cache.Exists(ctx, Key(email))
	if err != nil {
		return false, fmt.Errorf("check captcha: %w", err)
	}
	return ok, nil
}

var ten = big.NewInt(10)

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
