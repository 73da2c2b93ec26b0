package rbac

import (
	"net/http"

	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/middleware"
)

// PermissionMiddleware enforces collection-level policies at the router
type PermissionMiddleware struct {
	checker *Checker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker *Checker) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker: checker,
	}
}

// RequirePolicy rejects requests whose actor fails policy.HasPermission for the request method
func (pm *PermissionMiddleware) RequirePolicy(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := middleware.ActorFromRequest(r)
			if err := pm.checker.CheckCollection(r.Context(), policy, actor, r.Method); err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
