package auth

import "errors"

// Domain outcomes. Each workflow documents which of these it can return;
// anything else is an infrastructure failure.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactiveAccount      = errors.New("account is inactive")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaExpired       = errors.New("captcha expired")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrPasswordMismatch     = errors.New("password mismatch")
)
