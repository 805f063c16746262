package auth

import (
	"context"
	"sync"
)

// MemoryRepository is a process-local UserStore for tests and local runs
// without Postgres. Stored accounts are copied in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id].clone(), nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return r.byID[id].clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return ErrAccountAlreadyExists
	}
	if _, taken := r.byID[account.ID]; taken {
		return ErrAccountAlreadyExists
	}

	r.byID[account.ID] = account.clone()
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[account.ID]
	if !ok {
		return ErrAccountNotFound
	}

	updated := account.clone()
	// email and created_at are not mutable through Update.
	updated.Email = existing.Email
	updated.CreatedAt = existing.CreatedAt
	r.byID[account.ID] = updated

	account.Email = existing.Email
	account.CreatedAt = existing.CreatedAt
	return nil
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}
