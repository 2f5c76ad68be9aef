package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/graph"
	"github.com/inkwellapp/inkwell-server/internal/http/response"
)

// authenticate resolves the Authorization header into a request actor.
//
// A missing header or a non-bearer scheme passes through anonymously;
// resolvers and handlers that need identity reject on their own. A
// presented token that fails verification aborts the request with 401
// before any handler runs: a tampered or expired credential must never
// degrade to anonymous access. A token that verifies but names a user
// who no longer exists proceeds anonymously, since the account may have
// been removed after the token was issued.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, _, err := s.services.Auth.VerifyToken(r.Context(), token)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := graph.WithActor(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization header value.
// The scheme match is case-insensitive per RFC 7235.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// requireActor returns the authenticated user from context.
// Returns an UNAUTHENTICATED domain error if the request is anonymous.
func requireActor(ctx context.Context) (*domain.User, error) {
	if actor := graph.ActorFrom(ctx); actor != nil {
		return actor, nil
	}
	return nil, apperrors.Unauthenticated("authentication required")
}
