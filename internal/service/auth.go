// Package service contains the business logic layer of the application.
//
// THE DEPENDENCY CHAIN:
//
//	Handler (HTTP) → Service (business rules) → Repository (DB)
//	             ↘ TokenService (JWT) / PINService (bcrypt)
//
// Handlers only know HTTP, services only know the rules, the repository
// only knows SQL. Services accept primitives and return domain errors
// (apperror.*), never status codes — the handler layer does the mapping.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/cns-studios/auth-service/internal/apperror"
	"github.com/cns-studios/auth-service/internal/auth"
	"github.com/cns-studios/auth-service/internal/repository"
)

// Username and PIN shape rules.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	pinPattern      = regexp.MustCompile(`^\d{4}$`)
)

// AuthService handles signup and login.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	pins   *auth.PINService
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Called from the server's composition root.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	pins *auth.PINService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		pins:   pins,
		logger: logger,
	}
}

// Signup validates the submitted fields and creates the account.
//
// Validation surfaces the FIRST failing rule, in a fixed order: username
// length, username charset, PIN shape, terms-of-service consent. Uniqueness
// is the store's job — a duplicate comes back as apperror.ErrConflict.
func (s *AuthService) Signup(ctx context.Context, username, pin, tos string) (int64, error) {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return 0, apperror.ValidationFailed("username", "Username must be 3-20 characters")
	}
	if !usernamePattern.MatchString(username) {
		return 0, apperror.ValidationFailed("username", "Username: letters, numbers, underscore only")
	}
	if !pinPattern.MatchString(pin) {
		return 0, apperror.ValidationFailed("pin", "PIN must be exactly 4 digits")
	}
	if tos != "on" {
		return 0, apperror.ValidationFailed("tos", "You must accept the Terms of Service and Privacy Policy")
	}

	pinHash, err := s.pins.Hash(pin)
	if err != nil {
		return 0, fmt.Errorf("service/auth: hashing pin for signup: %w", err)
	}

	id, err := s.users.Create(ctx, username, pinHash)
	if err != nil {
		return 0, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("account created",
		slog.Int64("userID", id),
		slog.String("username", username),
	)

	return id, nil
}

// LoginResult bundles the authenticated identity and the freshly issued
// session token, so the handler can set the cookie and respond in one step.
type LoginResult struct {
	UserID   int64
	Username string
	Token    string
}

// Login verifies the credentials, records the login, and issues a token.
//
// An unknown (or deactivated) username and a wrong PIN both return
// apperror.InvalidCredentials() — identical error value, identical message,
// so the response gives an attacker no way to enumerate usernames.
// bcrypt's constant-time comparison keeps the PIN check itself flat; the
// lookup-miss path skips the hash, which is acceptable here because the
// rate limiter caps probing long before timing statistics get useful.
func (s *AuthService) Login(ctx context.Context, username, pin, source string) (*LoginResult, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "Username required")
	}
	if !pinPattern.MatchString(pin) {
		return nil, apperror.ValidationFailed("pin", "PIN must be 4 digits")
	}

	user, err := s.users.FindActiveByUsername(ctx, username)
	if err != nil {
		// NotFound is deliberately flattened into InvalidCredentials;
		// anything else is a real storage failure.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", username, err)
	}

	if err := s.pins.Verify(user.PINHash, pin); err != nil {
		if err == auth.ErrPINMismatch {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying pin for user %d: %w", user.ID, err)
	}

	if err := s.users.RecordLogin(ctx, user.ID, source); err != nil {
		return nil, fmt.Errorf("service/auth: recording login for user %d: %w", user.ID, err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("source", source),
	)

	return &LoginResult{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	}, nil
}
