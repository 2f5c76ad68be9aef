package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/color"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// UserService orchestrates user account operations.
type UserService struct {
	store  *store.Store
	audit  *audit.Trail
	logger *slog.Logger
}

// NewUserService creates a new user service. The audit trail may be nil.
func NewUserService(store *store.Store, auditTrail *audit.Trail, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		audit:  auditTrail,
		logger: logger,
	}
}

// CreateUserRequest contains fields for creating a user account.
type CreateUserRequest struct {
	Username string `json:"username"`
	// FavoriteGenre drives the recommended-books view. Optional.
	FavoriteGenre string `json:"favoriteGenre"`
}

// CreateUser creates a new user account. Usernames are unique
// case-insensitively; the store's username index enforces this.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Record:        domain.Record{ID: userID},
		Username:      req.Username,
		FavoriteGenre: req.FavoriteGenre,
		AvatarColor:   color.ForUser(userID),
	}
	user.InitTimestamps()

	if err := s.store.Users.Create(ctx, userID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.InvalidInputf("username %q is already taken", req.Username).WithCause(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			Actor:      user.Username,
			Action:     audit.ActionUserCreate,
			EntityType: "user",
			EntityID:   user.ID,
			Summary:    fmt.Sprintf("created user %q", user.Username),
		})
		if err != nil {
			s.logger.Warn("failed to record audit entry", "action", audit.ActionUserCreate, "error", err)
		}
	}

	s.logger.Info("user created", "id", user.ID, "username", user.Username)
	return user, nil
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("user %s not found", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername returns a user by username, matched case-insensitively.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.store.Users.GetByIndex(ctx, "username", username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundf("user %q not found", username)
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}
