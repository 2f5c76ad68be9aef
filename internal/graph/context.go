package graph

import (
	"context"

	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// actorKey is the context key for the authenticated user.
const actorKey ctxKey = "actor"

// WithActor stores the authenticated user in the context. Transports
// call this after verifying a bearer token, before executing a request.
func WithActor(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, actorKey, user)
}

// ActorFrom returns the authenticated user from the context, or nil for
// anonymous requests. Resolvers pass the result straight to the service
// layer, which decides whether the operation requires authentication.
func ActorFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(actorKey).(*domain.User)
	return user
}
