package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/CherryKingOne/WeiMeng/internal/token"
)

type TokenValidator interface {
	Validate(tokenStr string) (*token.Claims, error)
}

// Identity is what a verified bearer token says about the caller.
type Identity struct {
	AccountID string
	Email     string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Middleware rejects requests without a valid bearer token and passes the
// token's identity to next through the request context.
func Middleware(validator TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token", "")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format", "")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "invalid authorization token", "")
			return
		}

		claims, err := validator.Validate(tokenStr)
		if err != nil || claims.UID == "" {
			writeError(w, http.StatusUnauthorized, "invalid or expired token", "")
			return
		}

		identity := Identity{AccountID: claims.UID, Email: claims.Subject}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
