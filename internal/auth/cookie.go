package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie every property on the shared domain
// tree looks for.
const CookieName = "auth_token"

// CookieConfig describes how the session cookie is scoped. Built once at
// startup from configuration and shared by the login handler, the logout
// handler, and the session middleware.
type CookieConfig struct {
	// Domain is the shared PARENT domain (e.g. "cns-studios.com") so the
	// cookie is visible to every subordinate property on that tree.
	Domain string
	// MaxAge bounds the cookie's lifetime; it should match the token TTL
	// so cookie and claim expire together.
	MaxAge time.Duration
	// Secure marks the cookie HTTPS-only. On in production, off for local
	// development over plain HTTP.
	Secure bool
}

// Session returns the Set-Cookie value installing a session token.
//
// HttpOnly keeps page scripts from reading the token (XSS containment);
// SameSite=Lax sends it on top-level navigations between the family's
// properties but not on cross-site subrequests.
func (c CookieConfig) Session(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns the Set-Cookie value deleting the session cookie. The
// Domain and Path must match the ones it was set with or browsers keep the
// original cookie alive.
func (c CookieConfig) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
