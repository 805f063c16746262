package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	account, err := NewAccount("alice@example.com", nil, "digest", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, account))

	dup, err := NewAccount("alice@example.com", nil, "digest", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, dup), ErrAccountAlreadyExists)

	found, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, account.ID, found.ID)

	// Case-sensitive as stored.
	found, err = repo.FindByEmail(ctx, "Alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, found)

	copyOf, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	copyOf.PasswordHash = "mutated"
	again, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "digest", again.PasswordHash, "callers must not mutate stored state")

	copyOf.Email = "changed@example.com"
	require.NoError(t, repo.Update(ctx, copyOf))
	again, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "mutated", again.PasswordHash)
	assert.Equal(t, "alice@example.com", again.Email)

	ghost, err := NewAccount("ghost@example.com", nil, "digest", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Update(ctx, ghost), ErrAccountNotFound)

	exists, err := repo.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}
