package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write the
// session value — no other package can collide with or shadow it.
type contextKey string

const sessionKey contextKey = "session"

// Session is the per-request authenticated identity, derived ONCE from the
// validated token by RequireSession and passed down via context. Handlers
// never re-parse the cookie mid-request.
type Session struct {
	UserID   int64
	Username string
}

// RequireSession enforces authentication on protected routes.
//
// It reads the JWT from the auth_token cookie and validates it:
//   - no cookie at all      → 401, "Authentication required"
//   - invalid/expired token → 403, "Invalid or expired token", and the
//     cookie is cleared so the browser stops presenting a dead token
//
// On success the Session is stored in the request context for handlers.
func RequireSession(tokens *TokenService, cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := tokens.Validate(cookie.Value)
			if err != nil {
				http.SetCookie(w, cookies.Clear())
				writeAuthError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}

			sess := &Session{
				UserID:   claims.UserID,
				Username: claims.Username,
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the authenticated session set by
// RequireSession. Returns (nil, false) on unauthenticated requests.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// writeAuthError renders the middleware's two failure modes without
// importing the handler package (which would be an import cycle).
// The shape matches the handler layer's error responses.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"message":"` + message + `"}`))
}
