package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/id"
)

var (
	// instanceKey is the singleton key for the server record.
	instanceKey = []byte("server:config")

	// ErrInstanceNotFound is returned when no server config exists.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrInstanceAlreadyExists is returned when trying to create an instance that already exists.
	ErrInstanceAlreadyExists = errors.New("instance already exists")
)

// GetInstance retrieves the singleton server instance configuration.
// Returns ErrInstanceNotFound if no instance exists.
func (s *Store) GetInstance(_ context.Context) (*domain.Instance, error) {
	var instance domain.Instance

	err := s.get(instanceKey, &instance)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &instance, nil
}

// CreateInstance creates a new singleton server instance configuration.
// Returns ErrInstanceAlreadyExists if an instance already exists.
func (s *Store) CreateInstance(_ context.Context) (*domain.Instance, error) {
	exists, err := s.exists(instanceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance existence: %w", err)
	}

	if exists {
		return nil, ErrInstanceAlreadyExists
	}

	now := time.Now()
	instance := &domain.Instance{
		ID:        id.MustGenerate(id.PrefixInstance),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.set(instanceKey, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Server instance configuration created", "id", instance.ID)
	}

	return instance, nil
}

// UpdateInstance updates the server instance configuration.
func (s *Store) UpdateInstance(ctx context.Context, instance *domain.Instance) error {
	// Verify instance exists.
	_, err := s.GetInstance(ctx)
	if err != nil {
		return err
	}

	instance.UpdatedAt = time.Now()

	if err := s.set(instanceKey, instance); err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	return nil
}

// InitializeInstance ensures a server instance configuration exists.
// If no instance exists, it creates one. Returns the instance config.
func (s *Store) InitializeInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.GetInstance(ctx)
	if err == nil {
		if s.logger != nil {
			s.logger.Info("Server instance configuration found", "id", instance.ID)
		}
		return instance, nil
	}

	if errors.Is(err, ErrInstanceNotFound) {
		if s.logger != nil {
			s.logger.Info("No server instance configuration found, creating new instance")
		}
		return s.CreateInstance(ctx)
	}

	return nil, fmt.Errorf("failed to initialize instance: %w", err)
}
