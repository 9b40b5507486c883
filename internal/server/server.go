// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the database, token service, PIN service,
// redirect policy, rate limiter, services, and handlers are all constructed
// and wired here, and nowhere else. main.go only builds a Config and calls
// New/Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cns-studios/auth-service/internal/auth"
	"github.com/cns-studios/auth-service/internal/handler"
	"github.com/cns-studios/auth-service/internal/middleware"
	"github.com/cns-studios/auth-service/internal/ratelimit"
	sqliteRepo "github.com/cns-studios/auth-service/internal/repository/sqlite"
	"github.com/cns-studios/auth-service/internal/service"
)

// Config holds the startup configuration. JWTSecret and CookieDomain are
// required; the rest default sensibly (see cmd/server/main.go).
type Config struct {
	Port int

	// DBPath is the SQLite file (tests point this at a temp file).
	DBPath string

	// JWTSecret signs session tokens. Process-wide, never rotated while
	// the process lives — rotation would invalidate every session.
	JWTSecret string

	// CookieDomain is the shared parent domain the session cookie is
	// scoped to, making it visible to every subordinate property.
	CookieDomain string

	// CookieMaxAge bounds both the cookie and the token claims.
	// Zero selects auth.DefaultTokenTTL (7 days).
	CookieMaxAge time.Duration

	// AllowedRedirectDomains is the open-redirect allow-list.
	AllowedRedirectDomains []string

	// Production turns on Secure cookies (HTTPS only).
	Production bool

	// BcryptCost overrides the PIN hashing cost. Zero selects the
	// production default; tests pass bcrypt.MinCost.
	BcryptCost int
}

// Server owns the router and the database connection. The DB is closed
// during graceful shutdown so the WAL is flushed before exit.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server, wiring the full dependency chain:
//
//	sqlite.DB → AuthService/UserDataService → handlers → routes
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and the route table.
//
// ROUTE STRUCTURE:
//
//	POST /api/auth/signup        → create account        (rate-limited)
//	POST /api/auth/login         → verify + set cookie   (rate-limited)
//	GET  /logout                 → clear cookie, allow-listed redirect
//	GET  /api/me                 → full document         (session)
//	GET  /api/data/{service}     → read service slice    (session)
//	POST /api/data/{service}     → replace service slice (session)
//	GET  /health                 → liveness
//
// MIDDLEWARE ORDER MATTERS: RealIP must run before the rate limiter and
// the login handler, since both key off the client address.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.CookieMaxAge)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	pins := auth.NewPINService()
	if s.config.BcryptCost > 0 {
		pins = auth.NewPINServiceWithCost(s.config.BcryptCost)
	}

	cookies := auth.CookieConfig{
		Domain: s.config.CookieDomain,
		MaxAge: tokens.TTL(),
		Secure: s.config.Production,
	}
	redirects := auth.NewRedirectPolicy(s.config.AllowedRedirectDomains)

	authSvc := service.NewAuthService(s.db, tokens, pins, s.logger)
	dataSvc := service.NewUserDataService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, dataSvc, cookies, redirects, s.logger)
	dataHandler := handler.NewDataHandler(dataSvc, s.logger)

	limiter := ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"up"}`))
	})

	s.router.Get("/logout", authHandler.HandleLogout)

	// Credential endpoints: no session, but rate-limited per address.
	s.router.Route("/api/auth", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
	})

	// Everything below requires a valid session cookie.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, cookies))
		r.Get("/api/me", authHandler.HandleMe)
		r.Get("/api/data/{service}", dataHandler.HandleGet)
		r.Post("/api/data/{service}", dataHandler.HandlePut)
	})

	return nil
}

// ServeHTTP makes Server an http.Handler, for httptest-based tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database. Start does this itself; tests that never
// call Start use Close directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server and blocks until shutdown.
//
// GRACEFUL SHUTDOWN: on SIGINT/SIGTERM, stop accepting connections, give
// in-flight requests 30 seconds, then close the database so the WAL is
// flushed and the file lock released.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("auth service starting",
			slog.Int("port", s.config.Port),
			slog.String("cookieDomain", s.config.CookieDomain),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
