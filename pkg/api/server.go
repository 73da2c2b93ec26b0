package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/verdict/pkg/catalog"
	"github.com/platinummonkey/verdict/pkg/httputil"
	"github.com/platinummonkey/verdict/pkg/middleware"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/reviews"
	"github.com/platinummonkey/verdict/pkg/users"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is zero
const DefaultMaxBodyBytes = 1 << 20

// Config wires the services behind the API
type Config struct {
	Users   *users.Service
	Catalog *catalog.Service
	Reviews *reviews.Service

	Tokens  middleware.TokenParser
	Checker *rbac.Checker
	// Limiter throttles the /auth endpoints; nil disables throttling
	Limiter middleware.Limiter
	// TrustedProxies may report the caller address to the limiter; nil trusts nobody
	TrustedProxies *middleware.TrustedProxies

	Logger       *observability.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	cfg     Config

	userHandlers    *UserHandlers
	catalogHandlers *CatalogHandlers
	reviewHandlers  *ReviewHandlers
}

// NewServer creates a new API server with every route under /api/v1
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Checker == nil {
		cfg.Checker = rbac.NewChecker(cfg.Metrics)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router:          mux.NewRouter(),
		cfg:             cfg,
		userHandlers:    NewUserHandlers(cfg.Users, rbac.NewPermissionMiddleware(cfg.Checker)),
		catalogHandlers: NewCatalogHandlers(cfg.Catalog),
		reviewHandlers:  NewReviewHandlers(cfg.Reviews),
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
	)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method \""+r.Method+"\" not allowed")
	})
	s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics), observability.SpanRouteMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.cfg.MaxBodyBytes),
		middleware.NewAuthMiddleware(s.cfg.Tokens, s.cfg.Users).Handler,
	)

	authRoutes := api.PathPrefix("/auth").Subrouter()
	if s.cfg.Limiter != nil {
		authRoutes.Use(middleware.NewRateLimitMiddleware(s.cfg.Limiter, s.cfg.TrustedProxies, s.cfg.Logger).Handler)
	}
	s.userHandlers.RegisterAuthRoutes(authRoutes)

	s.userHandlers.RegisterRoutes(api)
	s.catalogHandlers.RegisterRoutes(api)
	s.reviewHandlers.RegisterRoutes(api)
}

// Router exposes the route table, mostly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
