// Package api serves the watercooler relay: one websocket room per sprint.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiMiddleware "github.com/maumercado/taskboard-go/internal/api/middleware"
	"github.com/maumercado/taskboard-go/internal/api/websocket"
	"github.com/maumercado/taskboard-go/internal/config"
	"github.com/maumercado/taskboard-go/internal/events"
)

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	config    *config.Config
	wsHub     *websocket.Hub
	wsHandler *websocket.Handler
	limiter   *apiMiddleware.ClientRateLimiter
	relay     *events.RedisPubSub
}

// NewServer creates the relay server. relay may be nil when Redis is off.
func NewServer(cfg *config.Config, relay *events.RedisPubSub) *Server {
	wsHub := websocket.NewHub(relay)

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		wsHub:     wsHub,
		wsHandler: websocket.NewHandler(wsHub, cfg.Server.Debug, cfg.Server.AllowedHosts),
		relay:     relay,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(apiMiddleware.RequestLogger())

	// Recoverer
	s.router.Use(middleware.Recoverer)

	// Heartbeat endpoint for load balancers
	s.router.Use(middleware.Heartbeat("/health"))
}

func (s *Server) setupRoutes() {
	// Metrics endpoint
	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	s.router.Group(func(r chi.Router) {
		// Connection rate limiting
		if s.config.Server.ConnectRPS > 0 {
			s.limiter = apiMiddleware.NewClientRateLimiter(s.config.Server.ConnectRPS)
			r.Use(s.limiter.Middleware)
		}

		r.Use(apiMiddleware.Auth(&apiMiddleware.AuthConfig{
			Enabled:   s.config.Auth.Enabled,
			JWTSecret: s.config.Auth.JWTSecret,
		}))

		r.Get("/{sprint:[0-9]+}", s.wsHandler.ServeWS)
	})
}

// Start starts the WebSocket hub
func (s *Server) Start(ctx context.Context) {
	s.wsHub.Run(ctx)
}

// Stop disconnects every client and stops the hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Hub returns the websocket hub
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Relay returns the Redis relay, nil when running single instance.
func (s *Server) Relay() *events.RedisPubSub {
	return s.relay
}
