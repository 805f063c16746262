package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/CherryKingOne/WeiMeng/internal/auth"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

type AccountActivator interface {
	SetActive(ctx context.Context, accountID string, active bool) (*auth.Account, error)
}

// AccountStatusHandler lets an operator holding the admin secret enable or
// disable an account. Without a configured secret the routes answer 404.
type AccountStatusHandler struct {
	accounts    AccountActivator
	logger      *observability.Logger
	adminSecret string
}

func NewAccountStatusHandler(accounts AccountActivator, logger *observability.Logger, adminSecret string) *AccountStatusHandler {
	return &AccountStatusHandler{
		accounts:    accounts,
		logger:      logger,
		adminSecret: strings.TrimSpace(adminSecret),
	}
}

func (h *AccountStatusHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, true)
}

func (h *AccountStatusHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, false)
}

func (h *AccountStatusHandler) handle(w http.ResponseWriter, r *http.Request, active bool) {
	if h.adminSecret == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accountID := strings.TrimSpace(r.PathValue("id"))
	if accountID == "" {
		writeError(w, http.StatusUnprocessableEntity, "account id is required")
		return
	}

	account, err := h.accounts.SetActive(r.Context(), accountID, active)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		observability.CaptureError(r.Context(), err)
		h.logger.ErrorContext(r.Context(), "account_status_update_failed", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, auth.NewAccountResponse(account))
}

func (h *AccountStatusHandler) authorized(r *http.Request) bool {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	given := strings.TrimSpace(parts[1])
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.adminSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"code": status, "message": message})
}
