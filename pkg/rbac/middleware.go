package rbac

import (
	"fmt"
	"net/http"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
	"github.com/opschat/opschat/pkg/observability"
)

// PermissionMiddleware gates routes on resolved permissions
type PermissionMiddleware struct {
	resolver *Resolver
	metrics  *observability.Metrics
}

// NewPermissionMiddleware creates a new permission middleware. Metrics
// may be nil.
func NewPermissionMiddleware(resolver *Resolver, metrics *observability.Metrics) *PermissionMiddleware {
	return &PermissionMiddleware{resolver: resolver, metrics: metrics}
}

// RequirePermission creates middleware that requires a specific
// permission. The denial names the missing permission.
func (pm *PermissionMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := middleware.GetUser(r)
			if user == nil {
				httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
				return
			}

			allowed, err := pm.resolver.HasPermission(r.Context(), user, permission)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			if !allowed {
				if pm.metrics != nil {
					pm.metrics.PermissionDenialsTotal.WithLabelValues("permission").Inc()
				}
				httputil.WriteForbidden(w, fmt.Sprintf("permission %q required", permission))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
