package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/contextkeys"
	"github.com/opschat/opschat/pkg/httputil"
)

// requestMiddleware tags every request with an ID, captures the status
// code, and emits one access log line plus a histogram observation when
// the handler returns. A caller-supplied X-Request-ID is honored so IDs
// correlate across service hops.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		start := time.Now()
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		ctx = context.WithValue(ctx, contextkeys.RequestStartTimeKey, start)

		w.Header().Set("X-Request-ID", requestID)
		rw := httputil.WrapResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		duration := time.Since(start)
		s.metrics.ObserveHTTPRequest(r.Method, routeTemplate(r), rw.StatusCode, duration)
		s.logger.WithFields(map[string]interface{}{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.StatusCode,
			"duration_ms": duration.Milliseconds(),
		}).Info("request completed")
	})
}

// routeTemplate returns the matched mux pattern so metrics label
// cardinality stays bounded. Unmatched requests fall back to a single
// catch-all label.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
