package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/auth"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

const testLoginSecret = "secret"

// setupAuthTest creates an auth service with temporary storage for testing.
func setupAuthTest(t *testing.T) (*AuthService, *store.Store, *auth.TokenService) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	s, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)

	authService, err := NewAuthService(s, tokenService, testLoginSecret, nil, logger)
	require.NoError(t, err)
	t.Cleanup(authService.Close)

	return authService, s, tokenService
}

// createTestUser stores a user record directly, bypassing the service layer.
func createTestUser(t *testing.T, s *store.Store, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		Record:   domain.Record{ID: "user-" + username},
		Username: username,
	}
	user.InitTimestamps()
	require.NoError(t, s.Users.Create(context.Background(), user.ID, user))

	return user
}

func TestAuthService_Login_Success(t *testing.T) {
	authService, s, _ := setupAuthTest(t)
	ctx := context.Background()

	user := createTestUser(t, s, "alice")

	result, err := authService.Login(ctx, LoginRequest{Username: "alice", Password: testLoginSecret})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	// The token must resolve back to the same user.
	resolved, claims, err := authService.VerifyToken(ctx, result.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "alice", claims.Username)
}

func TestAuthService_Login_CaseInsensitiveUsername(t *testing.T) {
	authService, s, _ := setupAuthTest(t)

	user := createTestUser(t, s, "alice")

	result, err := authService.Login(context.Background(), LoginRequest{Username: "ALICE", Password: testLoginSecret})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	// The stored casing wins, not whatever the login form sent.
	assert.Equal(t, "alice", result.User.Username)
}

func TestAuthService_Login_WrongCredentials(t *testing.T) {
	authService, s, _ := setupAuthTest(t)
	ctx := context.Background()

	createTestUser(t, s, "alice")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{
			name:     "unknown username",
			username: "nobody",
			password: testLoginSecret,
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "not-the-secret",
		},
		{
			name:     "empty password",
			username: "alice",
			password: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.Login(ctx, LoginRequest{Username: tt.username, Password: tt.password})
			require.Error(t, err)

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			// Same code and message either way, so responses don't
			// reveal which usernames exist.
			assert.Equal(t, apperrors.CodeInvalidInput, appErr.Code)
			assert.Contains(t, appErr.Message, "wrong credentials")
		})
	}
}

func TestAuthService_Login_RateLimited(t *testing.T) {
	authService, s, _ := setupAuthTest(t)
	ctx := context.Background()

	// Guessing at a nonexistent username burns the attempt budget
	// without touching the hash, so this stays fast.
	for i := 0; i < loginBurst; i++ {
		_, err := authService.Login(ctx, LoginRequest{Username: "mallory", Password: fmt.Sprintf("guess-%d", i)})
		require.Error(t, err)

		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, apperrors.CodeInvalidInput, appErr.Code)
	}

	_, err := authService.Login(ctx, LoginRequest{Username: "mallory", Password: testLoginSecret})
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeRateLimited, appErr.Code)

	// Other usernames keep their own budget.
	createTestUser(t, s, "alice")
	_, err = authService.Login(ctx, LoginRequest{Username: "alice", Password: testLoginSecret})
	require.NoError(t, err)
}

func TestAuthService_VerifyToken_Tampered(t *testing.T) {
	authService, s, _ := setupAuthTest(t)
	ctx := context.Background()

	createTestUser(t, s, "alice")
	result, err := authService.Login(ctx, LoginRequest{Username: "alice", Password: testLoginSecret})
	require.NoError(t, err)

	tampered := []byte(result.Token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	_, _, err = authService.VerifyToken(ctx, string(tampered))
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidCredential, appErr.Code)
}

func TestAuthService_VerifyToken_Expired(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	s, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(key, time.Millisecond)
	require.NoError(t, err)

	authService, err := NewAuthService(s, tokenService, testLoginSecret, nil, logger)
	require.NoError(t, err)
	t.Cleanup(authService.Close)

	ctx := context.Background()
	createTestUser(t, s, "alice")

	result, err := authService.Login(ctx, LoginRequest{Username: "alice", Password: testLoginSecret})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, _, err = authService.VerifyToken(ctx, result.Token)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeTokenExpired, appErr.Code)
}

func TestAuthService_VerifyToken_MissingUser(t *testing.T) {
	authService, _, tokenService := setupAuthTest(t)

	// Mint a token for a user that was never stored.
	ghost := &domain.User{
		Record:   domain.Record{ID: "user-ghost"},
		Username: "ghost",
	}
	token, err := tokenService.GenerateToken(ghost)
	require.NoError(t, err)

	// A valid token naming a missing user degrades to anonymous.
	user, claims, err := authService.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, user)
	require.NotNil(t, claims)
	assert.Equal(t, "user-ghost", claims.UserID)
}

func TestAuthService_VerifyToken_Garbage(t *testing.T) {
	authService, _, _ := setupAuthTest(t)

	_, _, err := authService.VerifyToken(context.Background(), "not-a-token")
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidCredential, appErr.Code)
}
