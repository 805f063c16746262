package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserStore is the durable record of accounts. Find methods return (nil, nil)
// when nothing matches. Save reports a duplicate email as
// ErrAccountAlreadyExists; Update reports a missing row as ErrAccountNotFound.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, username, hashed_password, is_active, created_at, updated_at`

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM users
		WHERE email = $1
	`, email)

	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) Save(ctx context.Context, account *Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, hashed_password, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.Email, nullString(account.Username), account.PasswordHash, account.IsActive,
		account.CreatedAt.UTC(), account.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, account *Account) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, hashed_password = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, account.ID, nullString(account.Username), account.PasswordHash, account.IsActive).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}

	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		account  Account
		username sql.NullString
	)
	err := row.Scan(&account.ID, &account.Email, &username, &account.PasswordHash, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if username.Valid {
		name := username.String
		account.Username = &name
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}

func nullString(value *string) sql.NullString {
	if value == nil || strings.TrimSpace(*value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
