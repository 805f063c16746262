package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           string
	Email        string
	Username     *string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewAccount(email string, username *string, passwordHash string, now time.Time) (*Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate uuid v7: %w", err)
	}

	now = now.UTC()
	return &Account{
		ID:           id.String(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Account) UpdatePassword(passwordHash string, now time.Time) {
	a.PasswordHash = passwordHash
	a.UpdatedAt = now.UTC()
}

func (a *Account) SetActive(active bool, now time.Time) {
	a.IsActive = active
	a.UpdatedAt = now.UTC()
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Username != nil {
		name := *a.Username
		c.Username = &name
	}
	return &c
}

type Token struct {
	AccessToken   string    `json:"access_token"`
	TokenType     string    `json:"token_type"`
	ExpiresInDays int       `json:"expires_in_days"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type RegisterInput struct {
	Username *string
	Email    string
	Password string
	Captcha  string
}

type ResetPasswordInput struct {
	Email           string
	Captcha         string
	NewPassword     string
	ConfirmPassword string
}
