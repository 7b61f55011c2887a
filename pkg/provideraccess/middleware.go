package provideraccess

import (
	"net/http"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
	"github.com/opschat/opschat/pkg/observability"
)

// GateMiddleware gates routes on provider access
type GateMiddleware struct {
	gate    *Gate
	metrics *observability.Metrics
}

// NewGateMiddleware creates a new gate middleware. Metrics may be nil.
func NewGateMiddleware(gate *Gate, metrics *observability.Metrics) *GateMiddleware {
	return &GateMiddleware{gate: gate, metrics: metrics}
}

// RequireProvider creates middleware that rejects users without access
// to the named provider.
func (gm *GateMiddleware) RequireProvider(provider string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := middleware.GetUser(r)
			if user == nil {
				httputil.WriteUnauthorized(w, apperr.CodeInvalidCredentials, "authentication required")
				return
			}

			allowed, err := gm.gate.CanAccess(r.Context(), user, provider)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			if !allowed {
				if gm.metrics != nil {
					gm.metrics.PermissionDenialsTotal.WithLabelValues("provider").Inc()
				}
				httputil.WriteForbidden(w, "no access to provider: "+provider)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
