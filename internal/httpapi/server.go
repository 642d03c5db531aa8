// internal/httpapi/server.go
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grant-backend/internal/common/config"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/observability"
	"grant-backend/internal/common/ratelimit"
)

// Deps bundles everything the server wires into routes.
type Deps struct {
	Applications *ApplicationHandler
	Admin        *AdminHandler
	Grants       *GrantHandler
	Limiter      ratelimit.Limiter
	Auth         config.AuthConfig
	RateLimit    config.RateLimitConfig
	Obs          *observability.Observability
	// Health maps a dependency name to its liveness probe.
	Health map[string]func() error
}

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	health     map[string]func() error
	logger     logger.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		health: deps.Health,
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
	s.routes(deps)

	readTimeout := 15 * time.Second
	if cfg.ReadTimeout > 0 {
		readTimeout = time.Duration(cfg.ReadTimeout) * time.Millisecond
	}
	writeTimeout := 30 * time.Second
	if cfg.WriteTimeout > 0 {
		writeTimeout = time.Duration(cfg.WriteTimeout) * time.Millisecond
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(deps Deps) {
	s.router.Use(requestMetrics(deps.Obs))

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	throttled := rateLimit(deps.Limiter, deps.RateLimit, s.logger)
	adminOnly := requireAdmin(deps.Auth, s.logger)

	// Applicant-facing routes.
	api.Handle("/applications",
		throttled(http.HandlerFunc(deps.Applications.Submit))).Methods(http.MethodPost)
	api.HandleFunc("/applications", deps.Applications.ListByEmail).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}/status", deps.Applications.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/applications/{id}", deps.Applications.Get).Methods(http.MethodGet)

	// Public grant browsing.
	api.HandleFunc("/grants", deps.Grants.List).Methods(http.MethodGet)
	api.HandleFunc("/grants/search", deps.Grants.Search).Methods(http.MethodGet)
	api.HandleFunc("/grants/category/{category}", deps.Grants.ListByCategory).Methods(http.MethodGet)
	api.HandleFunc("/grants/{id}", deps.Grants.Get).Methods(http.MethodGet)

	// Grant management.
	api.Handle("/grants",
		adminOnly(http.HandlerFunc(deps.Grants.Create))).Methods(http.MethodPost)
	api.Handle("/grants/{id}",
		adminOnly(http.HandlerFunc(deps.Grants.Update))).Methods(http.MethodPut)
	api.Handle("/grants/{id}",
		adminOnly(http.HandlerFunc(deps.Grants.Delete))).Methods(http.MethodDelete)

	// Admin views and decisions.
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(adminOnly)
	adminRouter.HandleFunc("/dashboard", deps.Admin.Dashboard).Methods(http.MethodGet)
	adminRouter.HandleFunc("/applications", deps.Admin.List).Methods(http.MethodGet)
	adminRouter.HandleFunc("/applications/{id}", deps.Applications.Get).Methods(http.MethodGet)
	adminRouter.HandleFunc("/applications/{id}/status", deps.Admin.UpdateStatus).Methods(http.MethodPut)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, probe := range s.health {
		if err := probe(); err != nil {
			checks[name] = "down: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
