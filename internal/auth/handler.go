package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

var captchaRegex = regexp.MustCompile(`^[0-9]{6}$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 128
	maxUsernameLength = 50
)

type Handler struct {
	service      *Service
	logger       *observability.Logger
	exposeDetail bool
}

// NewHandler builds the account endpoints. exposeDetail adds the underlying
// error text to 500 responses and is meant for development only.
func NewHandler(service *Service, logger *observability.Logger, exposeDetail bool) *Handler {
	return &Handler{service: service, logger: logger, exposeDetail: exposeDetail}
}

type registerRequest struct {
	Username *string `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Captcha  string  `json:"captcha"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	Captcha         string `json:"captcha"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAccountResponse(account *Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		Username:  account.Username,
		IsActive:  account.IsActive,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !ValidEmail(body.Email) {
		writeError(w, http.StatusUnprocessableEntity, "email format is invalid", "")
		return
	}
	if !validPassword(body.Password) {
		writeError(w, http.StatusUnprocessableEntity, "password must be between 8 and 128 characters", "")
		return
	}
	if !captchaRegex.MatchString(strings.TrimSpace(body.Captcha)) {
		writeError(w, http.StatusUnprocessableEntity, "captcha must be 6 digits", "")
		return
	}
	if body.Username != nil && len(strings.TrimSpace(*body.Username)) > maxUsernameLength {
		writeError(w, http.StatusUnprocessableEntity, "username is too long", "")
		return
	}

	account, err := h.service.Register(r.Context(), RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Captcha:  strings.TrimSpace(body.Captcha),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account_registered", map[string]any{"account_id": account.ID})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !ValidEmail(body.Email) {
		writeError(w, http.StatusUnprocessableEntity, "email format is invalid", "")
		return
	}
	if body.Password == "" || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, "password format is invalid", "")
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !ValidEmail(body.Email) {
		writeError(w, http.StatusUnprocessableEntity, "email format is invalid", "")
		return
	}
	if !captchaRegex.MatchString(strings.TrimSpace(body.Captcha)) {
		writeError(w, http.StatusUnprocessableEntity, "captcha must be 6 digits", "")
		return
	}
	if !validPassword(body.NewPassword) || !validPassword(body.ConfirmPassword) {
		writeError(w, http.StatusUnprocessableEntity, "password must be between 8 and 128 characters", "")
		return
	}

	err := h.service.ResetPassword(r.Context(), ResetPasswordInput{
		Email:           body.Email,
		Captcha:         strings.TrimSpace(body.Captcha),
		NewPassword:     body.NewPassword,
		ConfirmPassword: body.ConfirmPassword,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

// Me must run behind Middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token", "")
		return
	}

	account, err := h.service.CurrentAccount(r.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// The token outlived its account.
			writeError(w, http.StatusUnauthorized, "invalid or expired token", "")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewAccountResponse(account))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if status, message, ok := StatusFor(err); ok {
		writeError(w, status, message, "")
		return
	}

	observability.CaptureError(r.Context(), err)
	h.logger.ErrorContext(r.Context(), "auth_request_failed", map[string]any{
		"path":  r.URL.Path,
		"error": err.Error(),
	})

	detail := ""
	if h.exposeDetail {
		detail = err.Error()
	}
	writeError(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// StatusFor maps a domain error to its HTTP status and public message.
// ok is false for anything that is not a domain outcome.
func StatusFor(err error) (status int, message string, ok bool) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password", true
	case errors.Is(err, ErrInactiveAccount):
		return http.StatusForbidden, "Account is inactive", true
	case errors.Is(err, ErrCaptchaInvalid):
		return http.StatusUnprocessableEntity, "Invalid verification code", true
	case errors.Is(err, ErrCaptchaExpired):
		return http.StatusUnprocessableEntity, "Verification code has expired", true
	case errors.Is(err, ErrAccountAlreadyExists):
		return http.StatusBadRequest, "User with this email already exists", true
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, "Passwords do not match", true
	default:
		return 0, "", false
	}
}

// ValidEmail accepts a bare address such as alice@example.com, without a
// display name or angle brackets.
func ValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

func validPassword(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid json body", "")
		return false
	}
	return true
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message, Detail: detail})
}
