package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/auth"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/ratelimit"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// Login attempts are throttled per username. The refill rate keeps a
// steady guesser to one attempt per two seconds after the burst is spent.
const (
	loginRatePerSecond = 0.5
	loginBurst         = 5
)

// AuthService handles login and token verification.
//
// There is no per-user credential: every login is checked against the
// server-wide shared secret, hashed once at construction. This stands in
// for real credential storage and is not an authentication scheme to
// build on.
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	limiter      *ratelimit.KeyedRateLimiter
	audit        *audit.Trail
	logger       *slog.Logger
	secretHash   string
}

// NewAuthService creates a new authentication service. The audit trail
// may be nil.
func NewAuthService(
	store *store.Store,
	tokenService *auth.TokenService,
	loginSecret string,
	auditTrail *audit.Trail,
	logger *slog.Logger,
) (*AuthService, error) {
	secretHash, err := auth.HashSecret(loginSecret)
	if err != nil {
		return nil, fmt.Errorf("hash login secret: %w", err)
	}

	return &AuthService{
		store:        store,
		tokenService: tokenService,
		limiter:      ratelimit.New(loginRatePerSecond, loginBurst),
		audit:        auditTrail,
		logger:       logger,
		secretHash:   secretHash,
	}, nil
}

// Close releases the login rate limiter's sweep goroutine.
func (s *AuthService) Close() {
	s.limiter.Stop()
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult contains the signed token and the authenticated user.
type LoginResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login authenticates a user against the shared secret and returns a
// signed token carrying the user's identity.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	limiterKey := strings.ToLower(strings.TrimSpace(req.Username))
	if !s.limiter.Allow(limiterKey) {
		return nil, apperrors.RateLimited("too many login attempts, slow down")
	}

	user, err := s.store.Users.GetByIndex(ctx, "username", req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't leak whether the username exists.
			return nil, apperrors.InvalidInput("wrong credentials")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifySecret(s.secretHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify secret: %w", err)
	}
	if !valid {
		return nil, apperrors.InvalidInput("wrong credentials")
	}

	token, err := s.tokenService.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			Actor:      user.Username,
			Action:     audit.ActionUserLogin,
			EntityType: "user",
			EntityID:   user.ID,
			Summary:    fmt.Sprintf("user %q logged in", user.Username),
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to record audit entry", "action", audit.ActionUserLogin, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	}

	return &LoginResult{Token: token, User: user}, nil
}

// VerifyToken validates a token and resolves the user it names.
//
// A token that fails signature verification is an error; a valid token
// whose user no longer exists is not. The latter returns a nil user so
// the request proceeds anonymously, since the account may have been
// removed after the token was issued.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.User, *auth.Claims, error) {
	claims, err := s.tokenService.VerifyToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, nil, apperrors.TokenExpired("token expired")
		}
		return nil, nil, apperrors.InvalidCredential("invalid token").WithCause(err)
	}

	user, err := s.store.Users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if s.logger != nil {
				s.logger.Debug("token names a user that no longer exists", "user_id", claims.UserID)
			}
			return nil, claims, nil
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}
