package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/contextkeys"
	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/observability"
)

// TokenParser verifies access tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// ActorLoader resolves the current state of a user named by a token
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (*auth.Actor, error)
}

// AuthMiddleware provides authentication middleware. Requests without an Authorization
// header proceed anonymously; requests with a bad one are rejected with 401.
type AuthMiddleware struct {
	tokens TokenParser
	actors ActorLoader
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenParser, actors ActorLoader) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		actors: actors,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			httputil.WriteAppError(w, r, apperrors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.tokens.Parse(parts[1])
		if err != nil {
			httputil.WriteAppError(w, r, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		// The token only names the user; role and flags are read fresh so demotions apply immediately.
		actor, err := m.actors.LoadActor(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				httputil.WriteAppError(w, r, apperrors.Unauthorized("user no longer exists"))
				return
			}
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx := contextkeys.WithActor(r.Context(), actor)
		ctx = contextkeys.WithUserID(ctx, actor.Subject())
		if logger, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
			ctx = observability.WithLogger(ctx, logger.WithField("username", actor.Username))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the authenticated actor, or nil for anonymous requests
func ActorFromContext(ctx context.Context) *auth.Actor {
	actor, _ := ctx.Value(contextkeys.ActorKey).(*auth.Actor)
	return actor
}

// ActorFromRequest returns the authenticated actor of r, or nil
func ActorFromRequest(r *http.Request) *auth.Actor {
	return ActorFromContext(r.Context())
}
