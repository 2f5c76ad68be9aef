// Package api provides the HTTP API server and handlers for the Inkwell application.
//
// The GraphQL endpoint carries the catalog API; a small huma-described
// REST surface alongside it serves operational reads (health, instance
// identity, audit trail). Identity is resolved once, in middleware, and
// flows to both surfaces through the request context.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/graphql-go/graphql"
	gqlhandler "github.com/graphql-go/handler"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/service"
	"github.com/inkwellapp/inkwell-server/internal/sse"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	services   *Services
	audit      *audit.Trail
	sseManager *sse.Manager
	sseHandler *sse.Handler
	schema     graphql.Schema
	router     *chi.Mux
	api        huma.API
	config     *config.Config
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// The audit trail may be nil when auditing is disabled.
func NewServer(cfg *config.Config, store *store.Store, services *Services, schema graphql.Schema, sseManager *sse.Manager, sseHandler *sse.Handler, auditTrail *audit.Trail, logger *slog.Logger) *Server {
	s := &Server{
		store:      store,
		services:   services,
		audit:      auditTrail,
		sseManager: sseManager,
		sseHandler: sseHandler,
		schema:     schema,
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Inkwell API", service.ServerVersion)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAuditRoutes()
	s.setupGraphQLRoutes()

	// Server-Sent Events mirror of the catalog event stream.
	s.router.Get("/events", s.sseHandler.ServeHTTP)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack. Identity resolution
// runs last so every route sees the same actor semantics.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.authenticate)
}

// setupGraphQLRoutes mounts the GraphQL endpoint and its WebSocket
// transport. GraphiQL is served on browser GETs outside production.
func (s *Server) setupGraphQLRoutes() {
	dev := s.config.App.Environment != "production"

	gql := gqlhandler.New(&gqlhandler.Config{
		Schema:   &s.schema,
		Pretty:   dev,
		GraphiQL: dev,
	})

	s.router.Handle("/graphql", gql)
	s.router.Get("/graphql/ws", s.handleGraphQLWS)
}
