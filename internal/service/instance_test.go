package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// setupInstanceTest creates an instance service with a temporary store.
func setupInstanceTest(t *testing.T) *InstanceService {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	s, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:     "Test Server",
			LocalURL: "http://localhost:8080",
		},
	}

	return NewInstanceService(s, logger, cfg)
}

func TestInstanceService_GetInstance_NotFound(t *testing.T) {
	service := setupInstanceTest(t)

	_, err := service.GetInstance(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "instance configuration not found")
}

func TestInstanceService_InitializeInstance_Creates(t *testing.T) {
	service := setupInstanceTest(t)
	ctx := context.Background()

	instance, err := service.InitializeInstance(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, "Test Server", instance.Name)
	assert.Equal(t, "http://localhost:8080", instance.LocalURL)
	assert.Equal(t, ServerVersion, instance.Version)

	stored, err := service.GetInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, stored.ID)
	assert.Equal(t, "Test Server", stored.Name)
}

func TestInstanceService_InitializeInstance_ReturnsExisting(t *testing.T) {
	service := setupInstanceTest(t)
	ctx := context.Background()

	instance1, err := service.InitializeInstance(ctx)
	require.NoError(t, err)

	instance2, err := service.InitializeInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, instance1.ID, instance2.ID)
	assert.True(t, instance1.CreatedAt.Equal(instance2.CreatedAt), "CreatedAt timestamps should be equal")
}

func TestInstanceService_InitializeInstance_AppliesConfigChanges(t *testing.T) {
	service := setupInstanceTest(t)
	ctx := context.Background()

	_, err := service.InitializeInstance(ctx)
	require.NoError(t, err)

	// A renamed server picks up the new name on the next boot.
	service.config.Server.Name = "Renamed Server"
	instance, err := service.InitializeInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Server", instance.Name)
}
