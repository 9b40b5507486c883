// Package main is the entry point for the central SSO credential service.
//
// main stays minimal: read configuration from the environment, create the
// logger, hand both to the server package. All actual logic lives in
// internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cns-studios/auth-service/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// === REQUIRED CONFIGURATION ===
	// The signing secret and the shared cookie domain have no safe
	// defaults. Refuse to start without them — a guessable secret would
	// let anyone mint sessions for every property on the domain tree.
	jwtSecret := os.Getenv("JWT_SECRET")
	cookieDomain := os.Getenv("COOKIE_DOMAIN")
	if jwtSecret == "" || cookieDomain == "" {
		logger.Error("JWT_SECRET and COOKIE_DOMAIN env variables are required")
		os.Exit(1)
	}

	// === OPTIONAL CONFIGURATION ===
	port := 3001
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
		port = p
	}

	// Cookie lifetime in seconds; zero keeps the 7-day default.
	var cookieMaxAge time.Duration
	if maxAgeStr := os.Getenv("COOKIE_MAX_AGE"); maxAgeStr != "" {
		secs, err := strconv.Atoi(maxAgeStr)
		if err != nil || secs <= 0 {
			logger.Error("invalid COOKIE_MAX_AGE value", slog.String("value", maxAgeStr))
			os.Exit(1)
		}
		cookieMaxAge = time.Duration(secs) * time.Second
	}

	// Comma-separated allow-list of trusted parent domains for the
	// post-logout redirect. Defaults to the family's main domain.
	redirectDomains := []string{"cns-studios.com"}
	if raw := os.Getenv("ALLOWED_REDIRECT_DOMAINS"); raw != "" {
		redirectDomains = strings.Split(raw, ",")
	}

	dbPath := "data/auth.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	cfg := server.Config{
		Port:                   port,
		DBPath:                 dbPath,
		JWTSecret:              jwtSecret,
		CookieDomain:           cookieDomain,
		CookieMaxAge:           cookieMaxAge,
		AllowedRedirectDomains: redirectDomains,
		Production:             os.Getenv("ENV") == "production",
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
