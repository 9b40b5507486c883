package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/cns-studios/auth-service/internal/auth"
	"github.com/cns-studios/auth-service/internal/service"
)

// AuthHandler serves the credential endpoints: signup, login, logout, and
// the authenticated profile.
//
// DEPENDENCY CHAIN:
//   - authSvc   *service.AuthService     → credential verification
//   - dataSvc   *service.UserDataService → /api/me document reads
//   - cookies   auth.CookieConfig        → shared-domain session cookie
//   - redirects *auth.RedirectPolicy     → open-redirect allow-list
type AuthHandler struct {
	authSvc   *service.AuthService
	dataSvc   *service.UserDataService
	cookies   auth.CookieConfig
	redirects *auth.RedirectPolicy
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	authSvc *service.AuthService,
	dataSvc *service.UserDataService,
	cookies auth.CookieConfig,
	redirects *auth.RedirectPolicy,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authSvc:   authSvc,
		dataSvc:   dataSvc,
		cookies:   cookies,
		redirects: redirects,
		logger:    logger,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
	TOS      string `json:"tos"`
}

type signupResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// HandleSignup creates a new account.
//
// HTTP: POST /api/auth/signup (rate-limited)
// 201 on success; 400 with the first violated rule; 409 if the username is
// taken.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Invalid request body"})
		return
	}

	if _, err := h.authSvc.Signup(r.Context(), req.Username, req.PIN, req.TOS); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		Message:  "Account created successfully",
		Username: req.Username,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// HandleLogin verifies credentials and installs the session cookie.
//
// HTTP: POST /api/auth/login (rate-limited)
//
// The cookie is scoped to the shared parent domain, so after this response
// EVERY property on the domain tree sees the session. Unknown username and
// wrong PIN produce byte-identical 401 responses (see service.Login).
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Invalid request body"})
		return
	}

	// RealIP middleware has already resolved the client address.
	result, err := h.authSvc.Login(r.Context(), req.Username, req.PIN, clientAddr(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, h.cookies.Session(result.Token))

	writeJSON(w, http.StatusOK, loginResponse{
		Success:  true,
		Message:  "Login successful",
		Username: result.Username,
	})
}

// HandleLogout clears the session cookie and redirects back to the calling
// property — but ONLY if the caller-supplied redirect_uri survives the
// allow-list. Anything off-list is silently dropped in favor of a plain
// confirmation; the redirect target is never followed unvalidated.
//
// HTTP: GET /logout?redirect_uri=
//
// Note the token itself stays valid until its natural expiry — there is no
// server-side revocation. Logout removes the cookie, nothing more.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.Clear())

	if target, ok := h.redirects.ResolveReturnTarget(r.URL.Query().Get("redirect_uri")); ok {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Logged out successfully"))
}

// HandleMe returns the authenticated user's full document.
//
// HTTP: GET /api/me
// Auth: RequireSession
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireSession, but don't assume.
		writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "Authentication required"})
		return
	}

	data, err := h.dataSvc.Me(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// clientAddr returns the client address for lastLoginSource. RemoteAddr is
// either "ip:port" or, after chi's RealIP, possibly a bare IP.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
