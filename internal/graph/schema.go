// Package graph wires the catalog services into an executable GraphQL
// schema.
//
// The schema is hand-built from graphql-go object types rather than
// generated from SDL, so argument coercion and resolution are ordinary
// Go code. Resolvers stay thin: they unpack arguments, read the actor
// from the request context, and delegate to the service layer. Service
// errors implement gqlerrors.ExtendedError, so their code and details
// surface under the standard "extensions" key of each GraphQL error.
package graph

import (
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// Config carries the services the resolvers delegate to. Search may be
// nil, in which case the schema is built without the searchBooks field.
type Config struct {
	Catalog *service.CatalogService
	Users   *service.UserService
	Auth    *service.AuthService
	Search  *service.SearchService
	Bus     *bus.Bus
	Logger  *slog.Logger
}

// Resolver holds the schema's object types and the services behind them.
type Resolver struct {
	catalog *service.CatalogService
	users   *service.UserService
	auth    *service.AuthService
	search  *service.SearchService
	bus     *bus.Bus
	logger  *slog.Logger

	author *graphql.Object
	book   *graphql.Object
	user   *graphql.Object
	token  *graphql.Object
}

// NewSchema builds the executable schema from the configured services.
func NewSchema(cfg Config) (graphql.Schema, error) {
	r := &Resolver{
		catalog: cfg.Catalog,
		users:   cfg.Users,
		auth:    cfg.Auth,
		search:  cfg.Search,
		bus:     cfg.Bus,
		logger:  cfg.Logger,
	}
	r.buildTypes()

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:        r.queryType(),
		Mutation:     r.mutationType(),
		Subscription: r.subscriptionType(),
	})
}
