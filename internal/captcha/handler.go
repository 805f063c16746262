package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/CherryKingOne/WeiMeng/internal/auth"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type Sender interface {
	Send(ctx context.Context, email string, purpose Purpose) error
}

type Handler struct {
	sender       Sender
	logger       *observability.Logger
	exposeDetail bool
}

func NewHandler(sender Sender, logger *observability.Logger, exposeDetail bool) *Handler {
	return &Handler{sender: sender, logger: logger, exposeDetail: exposeDetail}
}

type sendRequest struct {
	Email string `json:"email"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (h *Handler) SendLogin(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, PurposeLogin)
}

func (h *Handler) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, PurposePasswordReset)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, purpose Purpose) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body sendRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid json body", "")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	// Same rule as registration, so no code goes to an address that cannot sign up.
	if !auth.ValidEmail(body.Email) {
		writeError(w, http.StatusUnprocessableEntity, "email format is invalid", "")
		return
	}

	if err := h.sender.Send(r.Context(), body.Email, purpose); err != nil {
		observability.CaptureError(r.Context(), err)
		h.logger.ErrorContext(r.Context(), "captcha_send_failed", map[string]any{
			"purpose": string(purpose),
			"error":   err.Error(),
		})

		message := "Internal Server Error"
		if errors.Is(err, ErrCaptchaSendFailed) {
			message = "Failed to send verification code"
		}
		detail := ""
		if h.exposeDetail {
			detail = err.Error()
		}
		writeError(w, http.StatusInternalServerError, message, detail)
		return
	}

	h.logger.InfoContext(r.Context(), "captcha_sent", map[string]any{"purpose": string(purpose)})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent, please check your email"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message, Detail: detail})
}
