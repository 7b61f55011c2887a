// Package api assembles the HTTP server: stores, handler groups, the
// middleware chain and the route table.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/opschat/opschat/pkg/agent/adk"
	"github.com/opschat/opschat/pkg/agent/bedrock"
	"github.com/opschat/opschat/pkg/agentcfg"
	"github.com/opschat/opschat/pkg/audit"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/documents"
	"github.com/opschat/opschat/pkg/httputil"
	"github.com/opschat/opschat/pkg/middleware"
	"github.com/opschat/opschat/pkg/observability"
	"github.com/opschat/opschat/pkg/prompts"
	"github.com/opschat/opschat/pkg/provideraccess"
	"github.com/opschat/opschat/pkg/rbac"
	"github.com/opschat/opschat/pkg/threads"
)

// Server is the API server. It owns the router and every handler group.
type Server struct {
	cfg     *config.Config
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker

	authMW *middleware.AuthMiddleware
	gateMW *provideraccess.GateMiddleware

	authHandlers     *auth.Handlers
	rbacHandlers     *rbac.Handlers
	accessHandlers   *provideraccess.Handlers
	agentCfgHandlers *agentcfg.Handlers
	auditHandlers    *audit.Handlers
	promptHandlers   *prompts.Handlers
	threadHandlers   *threads.Handlers
	documentHandlers *documents.Handlers
	bedrockHandlers  *bedrock.Handlers
	adkHandlers      *adk.Handlers
}

// NewServer builds every store and handler group on top of the given
// database handle and wires the route table. The redis client is
// optional; without it permission resolution skips the cache. The blob
// store backs document content.
func NewServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, blobs documents.BlobStore, logger *observability.Logger, metrics *observability.Metrics) *Server {
	users := auth.NewStore(db)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	var permCache *rbac.Cache
	if cfg.Cache.Enabled && redisClient != nil {
		permCache = rbac.NewCache(redisClient, cfg.Cache.TTL)
	}
	rbacStore := rbac.NewStore(db).WithCache(permCache)
	resolver := rbac.NewResolver(rbacStore, permCache)

	accessStore := provideraccess.NewStore(db)
	gate := provideraccess.NewGate(accessStore)

	agentStore := agentcfg.NewStore(db)
	auditStore := audit.NewStore(db)
	recorder := audit.NewRecorder(auditStore, logger, metrics)

	bedrockClient := bedrock.NewClient(cfg.Agents, agentStore, recorder, logger, metrics)
	adkClient := adk.NewClient(cfg.Agents, agentStore, recorder, logger, metrics)

	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
		health:  observability.NewHealthChecker(db, redisClient),

		authMW: middleware.NewAuthMiddleware(issuer, users, false),
		gateMW: provideraccess.NewGateMiddleware(gate, metrics),

		authHandlers:     auth.NewHandlers(users, hasher, issuer),
		rbacHandlers:     rbac.NewHandlers(rbacStore, resolver),
		accessHandlers:   provideraccess.NewHandlers(accessStore),
		agentCfgHandlers: agentcfg.NewHandlers(agentStore),
		auditHandlers:    audit.NewHandlers(auditStore),
		promptHandlers:   prompts.NewHandlers(prompts.NewStore(db)),
		threadHandlers:   threads.NewHandlers(threads.NewStore(db)),
		documentHandlers: documents.NewHandlers(documents.NewStore(db), blobs, logger),
		bedrockHandlers:  bedrock.NewHandlers(bedrockClient, logger),
		adkHandlers:      adk.NewHandlers(adkClient, logger),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the route table. Ordering matters: mux tries
// subrouters in registration order, so the public group comes first and
// the admin-gated groups last.
func (s *Server) setupRoutes() {
	s.router.Use(s.requestMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(httputil.CORSMiddleware(s.cfg.Server.AllowedOrigins))

	// Operational endpoints, no auth
	s.router.HandleFunc("/health", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.health.Readiness).Methods(http.MethodGet)
	if s.cfg.Observability.MetricsEnabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	public := s.router.NewRoute().Subrouter()
	s.authHandlers.RegisterPublicRoutes(public)

	// Everything below requires a valid token
	protected := s.router.NewRoute().Subrouter()
	protected.Use(s.authMW.Handler)

	s.authHandlers.RegisterProtectedRoutes(protected)
	s.authHandlers.RegisterUserRoutes(protected)
	s.promptHandlers.RegisterRoutes(protected)
	s.threadHandlers.RegisterRoutes(protected)
	s.documentHandlers.RegisterRoutes(protected)

	selfAccess := protected.PathPrefix("/api").Subrouter()
	s.accessHandlers.RegisterSelfRoutes(selfAccess)

	// Chat relays, gated per provider
	aws := protected.NewRoute().Subrouter()
	aws.Use(s.gateMW.RequireProvider(provideraccess.ProviderAWS))
	s.bedrockHandlers.RegisterRoutes(aws)

	gcp := protected.NewRoute().Subrouter()
	gcp.Use(s.gateMW.RequireProvider(provideraccess.ProviderGCP))
	s.adkHandlers.RegisterRoutes(gcp)

	// Admin surface
	adminUsers := protected.NewRoute().Subrouter()
	adminUsers.Use(middleware.RequireAdmin)
	s.authHandlers.RegisterAdminUserRoutes(adminUsers)

	admin := protected.PathPrefix("/api").Subrouter()
	admin.Use(middleware.RequireAdmin)
	s.rbacHandlers.RegisterRoutes(admin)
	s.accessHandlers.RegisterRoutes(admin)
	s.agentCfgHandlers.RegisterRoutes(admin)
	s.auditHandlers.RegisterRoutes(admin)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is implemented by handler groups that mount themselves
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes mounts an extra handler group on the root router
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
