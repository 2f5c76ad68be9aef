package providers

import (
	"github.com/graphql-go/graphql"
	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/auth"
	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/graph"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// ProvideInstanceService provides the server instance service.
func ProvideInstanceService(i do.Injector) (*service.InstanceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewInstanceService(storeHandle.Store, log.Logger, cfg), nil
}

// AuthServiceHandle wraps the auth service with shutdown capability.
type AuthServiceHandle struct {
	*service.AuthService
}

// Shutdown implements do.Shutdownable. Close stops the login rate
// limiter's cleanup goroutine.
func (h *AuthServiceHandle) Shutdown() error {
	h.AuthService.Close()
	return nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*AuthServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	trailHandle := do.MustInvoke[*AuditTrailHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc, err := service.NewAuthService(storeHandle.Store, tokenService, cfg.Auth.LoginSecret, trailHandle.Trail, log.Logger)
	if err != nil {
		return nil, err
	}

	return &AuthServiceHandle{AuthService: svc}, nil
}

// ProvideCatalogService provides the book and author catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	trailHandle := do.MustInvoke[*AuditTrailHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, busHandle.Bus, indexHandle.SearchIndex, trailHandle.Trail, log.Logger), nil
}

// ProvideUserService provides the user account service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	trailHandle := do.MustInvoke[*AuditTrailHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, trailHandle.Trail, log.Logger), nil
}

// ProvideSchema provides the executable GraphQL schema.
func ProvideSchema(i do.Injector) (graphql.Schema, error) {
	catalog := do.MustInvoke[*service.CatalogService](i)
	users := do.MustInvoke[*service.UserService](i)
	authHandle := do.MustInvoke[*AuthServiceHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return graph.NewSchema(graph.Config{
		Catalog: catalog,
		Users:   users,
		Auth:    authHandle.AuthService,
		Search:  searchService,
		Bus:     busHandle.Bus,
		Logger:  log.Logger,
	})
}
