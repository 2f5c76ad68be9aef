package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// setupUserTest creates a user service with temporary storage for testing.
func setupUserTest(t *testing.T) (*UserService, *store.Store) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	s, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return NewUserService(s, nil, logger), s
}

func TestUserService_CreateUser(t *testing.T) {
	svc, _ := setupUserTest(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username:      "alice",
		FavoriteGenre: "refactoring",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "refactoring", user.FavoriteGenre)
	assert.True(t, user.HasFavoriteGenre())
	assert.False(t, user.CreatedAt.IsZero())
	assert.Regexp(t, `^#[0-9A-F]{6}$`, user.AvatarColor)

	stored, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
}

func TestUserService_CreateUser_NoFavoriteGenre(t *testing.T) {
	svc, _ := setupUserTest(t)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{Username: "bob"})
	require.NoError(t, err)
	assert.False(t, user.HasFavoriteGenre())
}

func TestUserService_CreateUser_DuplicateUsername(t *testing.T) {
	svc, _ := setupUserTest(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Username: "mallory"})
	require.NoError(t, err)

	// Usernames collide case-insensitively.
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "Mallory"})
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidInput, appErr.Code)
	assert.Contains(t, appErr.Message, "Mallory")
}

func TestUserService_GetUserByUsername(t *testing.T) {
	svc, _ := setupUserTest(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserRequest{Username: "alice"})
	require.NoError(t, err)

	user, err := svc.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	svc, _ := setupUserTest(t)

	_, err := svc.GetUser(context.Background(), "user-missing")
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}
