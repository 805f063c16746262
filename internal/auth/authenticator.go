package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultTokenValidityDays = 30
	tokenTypeBearer          = "bearer"
)

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, digest string) bool
}

type TokenIssuer interface {
	Issue(accountID, email string, validityDays int) (string, time.Time, error)
}

// Authenticator checks credentials and mints tokens. It holds no state beyond
// its collaborators and is safe for concurrent use.
type Authenticator struct {
	hasher       PasswordHasher
	issuer       TokenIssuer
	validityDays int

	dummyMu   sync.Mutex
	dummyHash string
}

func NewAuthenticator(hasher PasswordHasher, issuer TokenIssuer, validityDays int) *Authenticator {
	if validityDays <= 0 {
		validityDays = DefaultTokenValidityDays
	}
	return &Authenticator{
		hasher:       hasher,
		issuer:       issuer,
		validityDays: validityDays,
	}
}

// ValidateCredentials returns ErrInvalidCredentials for an absent account and
// for a wrong password alike. ErrInactiveAccount is only reported once the
// password has verified.
func (a *Authenticator) ValidateCredentials(ctx context.Context, account *Account, password string) (*Account, error) {
	if account == nil {
		// Spend roughly the same time as a real comparison.
		a.hasher.Verify(ctx, password, a.dummyDigest(ctx))
		return nil, ErrInvalidCredentials
	}

	if !a.hasher.Verify(ctx, password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrInactiveAccount
	}

	return account, nil
}

func (a *Authenticator) IssueToken(account *Account) (Token, error) {
	accessToken, expiresAt, err := a.issuer.Issue(account.ID, account.Email, a.validityDays)
	if err != nil {
		return Token{}, fmt.Errorf("issue access token: %w", err)
	}

	return Token{
		AccessToken:   accessToken,
		TokenType:     tokenTypeBearer,
		ExpiresInDays: a.validityDays,
		ExpiresAt:     expiresAt,
	}, nil
}

func (a *Authenticator) HashPassword(ctx context.Context, plain string) (string, error) {
	digest, err := a.hasher.Hash(ctx, plain)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

// dummyDigest builds the digest compared against for unknown emails. It is
// detached from the request's cancellation and retried until one exists, so a
// single failed attempt cannot turn the comparison into a no-op.
func (a *Authenticator) dummyDigest(ctx context.Context) string {
	a.dummyMu.Lock()
	defer a.dummyMu.Unlock()

	if a.dummyHash == "" {
		digest, err := a.hasher.Hash(context.WithoutCancel(ctx), "not-a-real-password")
		if err == nil {
			a.dummyHash = digest
		}
	}
	return a.dummyHash
}
