package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// ServerVersion is stamped into the instance record on every boot and
// reported by the OpenAPI surface.
const ServerVersion = "0.1.0"

// InstanceService handles business logic for server instance configuration.
type InstanceService struct {
	store  *store.Store
	logger *slog.Logger
	config *config.Config
}

// NewInstanceService creates a new instance service.
func NewInstanceService(store *store.Store, logger *slog.Logger, config *config.Config) *InstanceService {
	return &InstanceService{
		store:  store,
		logger: logger,
		config: config,
	}
}

// GetInstance retrieves the server instance configuration.
func (s *InstanceService) GetInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.store.GetInstance(ctx)
	if err != nil {
		if errors.Is(err, store.ErrInstanceNotFound) {
			return nil, apperrors.NotFound("instance configuration not found").WithCause(err)
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// InitializeInstance ensures a server instance configuration exists and
// reflects the current config. This is the main entry point on boot.
func (s *InstanceService) InitializeInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.store.InitializeInstance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instance: %w", err)
	}

	instance.Version = ServerVersion
	if s.config.Server.Name != "" {
		instance.Name = s.config.Server.Name
	}
	if s.config.Server.LocalURL != "" {
		instance.LocalURL = s.config.Server.LocalURL
	}
	if s.config.Server.RemoteURL != "" {
		instance.RemoteURL = s.config.Server.RemoteURL
	}

	if err := s.store.UpdateInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to update instance with config: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Server instance ready",
			"instance_id", instance.ID,
			"name", instance.Name,
			"version", instance.Version,
		)
	}

	return instance, nil
}
