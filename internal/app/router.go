package app

import (
	"encoding/json"
	"net/http"

	"github.com/CherryKingOne/WeiMeng/internal/auth"
	"github.com/CherryKingOne/WeiMeng/internal/captcha"
	"github.com/CherryKingOne/WeiMeng/internal/maintenance"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

type routerDeps struct {
	logger        *observability.Logger
	authHandler   *auth.Handler
	captcha       *captcha.Handler
	accountStatus *maintenance.AccountStatusHandler
	loginLimiter  *auth.LoginRateLimiter
	tokens        auth.TokenValidator
	health        http.HandlerFunc
}

func newRouter(deps routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", deps.authHandler.Register)
	mux.Handle("POST /api/v1/auth/login", deps.loginLimiter.Middleware(http.HandlerFunc(deps.authHandler.Login)))
	mux.HandleFunc("POST /api/v1/auth/reset-password", deps.authHandler.ResetPassword)
	mux.Handle("GET /api/v1/auth/me", auth.Middleware(deps.tokens, http.HandlerFunc(deps.authHandler.Me)))

	mux.HandleFunc("POST /api/v1/captcha/email/send", deps.captcha.SendLogin)
	mux.HandleFunc("POST /api/v1/captcha/email/forgot-password", deps.captcha.SendPasswordReset)

	mux.HandleFunc("POST /internal/accounts/{id}/activate", deps.accountStatus.Activate)
	mux.HandleFunc("POST /internal/accounts/{id}/deactivate", deps.accountStatus.Deactivate)

	mux.HandleFunc("GET /health", deps.health)

	var handler http.Handler = mux
	handler = observability.RequestLoggingMiddleware(deps.logger, handler)
	handler = observability.RecoverMiddleware(deps.logger, handler)
	handler = observability.RequestIDMiddleware(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
