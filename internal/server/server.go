// Package server exposes the admin and market HTTP API and the websocket
// event stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmarket/vmarket/internal/domain"
	"github.com/vmarket/vmarket/internal/server/handler"
	"github.com/vmarket/vmarket/internal/server/middleware"
	"github.com/vmarket/vmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	RateLimitPerMinute int
	DefaultRoom        domain.Room
}

// Handlers aggregates the HTTP handlers registered by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Admin   *handler.AdminHandler
	Markets *handler.MarketHandler
}

// Deps are the collaborators used by middleware. Limiter may be nil to
// disable per-IP rate limiting.
type Deps struct {
	Authorizer middleware.Authorizer
	Limiter    domain.RateLimiter
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, deps Deps, hub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, handlers, deps, hub, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Create and resolve runs wait for receipts.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, deps Deps, hub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	guard := func(h http.HandlerFunc, roles ...domain.Role) http.Handler {
		return middleware.RoleGuard(deps.Authorizer, cfg.DefaultRoom, logger, roles...)(h)
	}

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Admin endpoints; each re-checks the caller's role on-chain.
	mux.Handle("POST /api/admin/fetch-games", guard(handlers.Admin.FetchGames, domain.RoleCreator))
	mux.Handle("POST /api/admin/create-markets", guard(handlers.Admin.CreateMarkets, domain.RoleCreator))
	mux.Handle("POST /api/admin/resolve-markets", guard(handlers.Admin.ResolveMarkets, domain.RoleResolver))
	mux.HandleFunc("GET /api/admin/roles", handlers.Admin.ListRoles)
	mux.Handle("POST /api/admin/roles", guard(handlers.Admin.ChangeRole, domain.RoleAdmin))
	mux.Handle("GET /api/admin/get-markets", guard(handlers.Admin.GetMarkets, domain.RoleAdmin, domain.RoleCreator))

	// Public market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{room}/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{room}/{id}/shares/{user}", handlers.Markets.GetShares)
	mux.HandleFunc("GET /api/rules", handlers.Markets.ListRules)
	mux.HandleFunc("GET /api/events", handlers.Markets.RecentEvents)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	if deps.Limiter != nil && cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(deps.Limiter, cfg.RateLimitPerMinute, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
