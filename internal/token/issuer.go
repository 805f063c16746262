// Package token issues and validates the signed bearer tokens handed out at
// login. Tokens are stateless: the signature and the exp claim are the only
// things checked.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a token can fail: malformed, wrong
// algorithm, bad signature, missing or past expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the wire payload: sub (email), uid (account id) and exp.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func NewIssuer(secret, algorithm string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	return &Issuer{secret: []byte(secret), method: method, now: time.Now}, nil
}

// Issue signs a token for the account that expires validityDays from now and
// returns it together with that expiry.
func (i *Issuer) Issue(accountID, email string, validityDays int) (string, time.Time, error) {
	if validityDays <= 0 {
		return "", time.Time{}, fmt.Errorf("token validity must be positive, got %d days", validityDays)
	}

	expiresAt := i.now().UTC().Add(time.Duration(validityDays) * 24 * time.Hour).Truncate(time.Second)
	claims := Claims{
		UID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}

	return signed, expiresAt, nil
}

func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (i *Issuer) AccountID(tokenStr string) (string, bool) {
	claims, err := i.Validate(tokenStr)
	if err != nil || claims.UID == "" {
		return "", false
	}
	return claims.UID, true
}

func (i *Issuer) Email(tokenStr string) (string, bool) {
	claims, err := i.Validate(tokenStr)
	if err != nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
