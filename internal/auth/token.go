// Package auth provides session token issuance/validation, PIN hashing,
// the session middleware, and the redirect allow-list for the central
// credential service.
//
// SESSION MODEL:
// On a successful login the service mints a signed JWT carrying the user's
// ID and username, installed as an HttpOnly cookie scoped to the shared
// parent domain. Every subordinate property on that domain tree sees the
// cookie, and any of them (or this service itself) can authorize a request
// by validating the signature — no session store, no DB lookup.
//
// There is deliberately NO revocation list: expiry is the only bound on a
// token's lifetime. Logout clears the client-side cookie and nothing else.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the fixed validity window for session tokens.
// Seven days: long enough that casual visitors stay signed in across the
// whole family of properties, short enough to bound a stolen token.
const DefaultTokenTTL = 7 * 24 * time.Hour

const tokenIssuer = "cns-auth"

// SessionClaims is the signed claim set carried by every session token.
// UserID and Username are the only application claims; issue and expiry
// times live in the embedded RegisteredClaims.
type SessionClaims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService mints and validates session tokens.
//
// It holds the process-wide HMAC secret, configured once at startup and
// never rotated during the process lifetime — rotation would invalidate
// every outstanding session, which is an explicit trade-off of this design.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and validity
// window. A zero ttl selects DefaultTokenTTL.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: signing secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured validity window. The cookie max-age is bounded
// by the same value so cookie and claim expire together.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and signs a session token for the given identity.
func (s *TokenService) Issue(userID int64, username string) (string, error) {
	return s.IssueWithTTL(userID, username, s.ttl)
}

// IssueWithTTL signs a token with a custom validity window.
// Used by tests to produce already-expired tokens.
func (s *TokenService) IssueWithTTL(userID int64, username string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := SessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// ErrInvalidToken is the single error surfaced for any failed validation.
// Structural corruption, a bad signature, a wrong issuer, and expiry all
// collapse into it — callers learn "unauthenticated" and nothing more.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Validate parses and verifies a token string and returns its claims.
//
// Checks performed by the jwt library:
//   - signature is valid for our secret
//   - now is within [iat, exp)
//   - issuer matches (rejects tokens minted by other apps sharing a secret)
//   - algorithm is HS256 (prevents algorithm-confusion attacks)
func (s *TokenService) Validate(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	c, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || c.UserID == 0 || c.Username == "" {
		return nil, ErrInvalidToken
	}

	return c, nil
}
