// Package web provides the HTTP server and browser UI for the jukebox.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/logging"
	"github.com/justestif/go-spotify-jukebox/internal/proxy"
)

// DefaultAddr is the default server address.
const DefaultAddr = ":3000"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	Store       *auth.CredentialStore
	Exchanger   *auth.Exchanger
	Proxy       *proxy.Proxy
	TemplatesFS fs.FS
	StaticFS    fs.FS

	// RateLimit is the sustained /api request rate per second; 0 disables limiting.
	RateLimit float64
	RateBurst int

	Logger *log.Logger
}

// Server is the HTTP server for the web application.
type Server struct {
	router    chi.Router
	server    *http.Server
	templates *Templates
	handlers  *Handlers
	gate      *auth.Gate
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Exchanger == nil || cfg.Proxy == nil {
		return nil, errors.New("web: store, exchanger and proxy are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	router := chi.NewRouter()

	s := &Server{
		router:    router,
		templates: templates,
		handlers:  NewHandlers(cfg.Store, cfg.Exchanger, cfg.Proxy, templates, logger),
		gate:      auth.NewGate(cfg.Store),
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
		// Provider calls are bounded by the upstream timeout; leave room for one refresh and a retry.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     logging.Standard(logger),
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logging.Standard(s.logger),
		NoColor: true,
	}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	s.router.Get("/", s.handlers.Home)
	s.router.Get("/healthz", s.handlers.Health)

	// Auth routes
	s.router.Get("/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handlers.Status)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(rateLimit(s.limiter))
			}
			r.Use(requireAuth(s.gate))

			r.Get("/search", s.handlers.Search)
			r.Get("/devices", s.handlers.Devices)
			r.Post("/add", s.handlers.Add)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
