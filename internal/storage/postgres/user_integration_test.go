package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrawl-game/scrawl/internal/storage/postgres"
	"github.com/scrawl-game/scrawl/internal/testutil"
)

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@example.com", prefix, time.Now().UnixNano())
}

func setupUserRepo(t *testing.T) *postgres.UserRepository {
	t.Helper()
	return postgres.NewUserRepository(testutil.NewPool(t))
}

func TestPool_Health(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 5*time.Second))
}

func TestUserRepository_Create(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	email := uniqueEmail("alice")
	u, err := repo.Create(ctx, email, "hunter2")
	require.NoError(t, err)

	assert.Greater(t, u.ID, int64(0))
	assert.Equal(t, email, u.Email)
	assert.False(t, u.CreatedAt.IsZero())

	// Only the bcrypt hash is stored.
	assert.NotEqual(t, "hunter2", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2")))
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	email := uniqueEmail("dup")
	_, err := repo.Create(ctx, email, "hunter2")
	require.NoError(t, err)

	_, err = repo.Create(ctx, email, "other")
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrUserExists)
}

func TestUserRepository_Authenticate(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	email := uniqueEmail("bob")
	created, err := repo.Create(ctx, email, "hunter2")
	require.NoError(t, err)

	u, err := repo.Authenticate(ctx, email, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
}

func TestUserRepository_AuthenticateWrongPassword(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	email := uniqueEmail("carol")
	_, err := repo.Create(ctx, email, "hunter2")
	require.NoError(t, err)

	_, err = repo.Authenticate(ctx, email, "wrong")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}

func TestUserRepository_AuthenticateUnknownEmail(t *testing.T) {
	repo := setupUserRepo(t)

	_, err := repo.Authenticate(context.Background(), uniqueEmail("ghost"), "hunter2")
	assert.ErrorIs(t, err, postgres.ErrUserNotFound)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	email := uniqueEmail("dave")
	created, err := repo.Create(ctx, email, "hunter2")
	require.NoError(t, err)

	u, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	assert.Equal(t, email, u.Email)
}
