package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

// CodeStore is the part of the one-time-code store the workflows need.
type CodeStore interface {
	Peek(ctx context.Context, email string) (string, bool, error)
	Consume(ctx context.Context, email string) (bool, error)
}

type Service struct {
	users         UserStore
	codes         CodeStore
	authenticator *Authenticator
	logger        *observability.Logger
	now           func() time.Time
}

func NewService(users UserStore, codes CodeStore, authenticator *Authenticator, logger *observability.Logger) *Service {
	return &Service{
		users:         users,
		codes:         codes,
		authenticator: authenticator,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an active account for an email whose one-time code
// matches. Domain errors: ErrCaptchaInvalid, ErrAccountAlreadyExists.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	email := strings.TrimSpace(input.Email)

	if err := s.checkCode(ctx, email, input.Captcha, ErrCaptchaInvalid); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountAlreadyExists
	}

	passwordHash, err := s.authenticator.HashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	account, err := NewAccount(email, normalizeUsername(input.Username), passwordHash, s.now())
	if err != nil {
		return nil, err
	}
	// A concurrent registration can still win the race; the store's unique
	// index turns that into ErrAccountAlreadyExists here.
	if err := s.users.Save(ctx, account); err != nil {
		return nil, err
	}

	s.consumeCode(ctx, email, "register")
	return account, nil
}

// Login returns a bearer token for valid credentials.
// Domain errors: ErrInvalidCredentials, ErrInactiveAccount.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	account, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return Token{}, err
	}

	account, err = s.authenticator.ValidateCredentials(ctx, account, password)
	if err != nil {
		return Token{}, err
	}

	return s.authenticator.IssueToken(account)
}

// ResetPassword replaces the password of the account owning email.
// Domain errors: ErrPasswordMismatch, ErrCaptchaExpired, ErrCaptchaInvalid,
// ErrAccountNotFound.
func (s *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if input.NewPassword != input.ConfirmPassword {
		return ErrPasswordMismatch
	}

	email := strings.TrimSpace(input.Email)
	if err := s.checkCode(ctx, email, input.Captcha, ErrCaptchaExpired); err != nil {
		return err
	}

	account, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	passwordHash, err := s.authenticator.HashPassword(ctx, input.NewPassword)
	if err != nil {
		return err
	}
	account.UpdatePassword(passwordHash, s.now())
	if err := s.users.Update(ctx, account); err != nil {
		return err
	}

	s.consumeCode(ctx, email, "reset_password")
	return nil
}

// CurrentAccount resolves the account behind a validated token.
// Domain errors: ErrAccountNotFound, ErrInactiveAccount.
func (s *Service) CurrentAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, ErrInactiveAccount
	}
	return account, nil
}

// SetActive toggles the active flag. Domain errors: ErrAccountNotFound.
func (s *Service) SetActive(ctx context.Context, accountID string, active bool) (*Account, error) {
	account, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.IsActive == active {
		return account, nil
	}

	account.SetActive(active, s.now())
	if err := s.users.Update(ctx, account); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account_status_changed", map[string]any{
		"account_id": account.ID,
		"is_active":  active,
	})
	return account, nil
}

// checkCode reports missing as the error for an absent code and
// ErrCaptchaInvalid for a stored code that differs.
func (s *Service) checkCode(ctx context.Context, email, submitted string, missing error) error {
	stored, ok, err := s.codes.Peek(ctx, email)
	if err != nil {
		return fmt.Errorf("read captcha: %w", err)
	}
	if !ok {
		return missing
	}
	if stored != submitted {
		return ErrCaptchaInvalid
	}
	return nil
}

// consumeCode runs after the account write has committed, so a failure here
// is logged and the code is left to expire on its own.
func (s *Service) consumeCode(ctx context.Context, email, flow string) {
	if _, err := s.codes.Consume(ctx, email); err != nil {
		s.logger.ErrorContext(ctx, "captcha_consume_failed", map[string]any{
			"flow":  flow,
			"error": err.Error(),
		})
	}
}

func normalizeUsername(username *string) *string {
	if username == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*username)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
