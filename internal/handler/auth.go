package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler serves registration, password login, the Google login flow
// and session inspection.
//
// DEPENDENCY CHAIN:
//   - accounts *service.AuthService   → register/login/upsert, issues tokens
//   - google   *auth.GoogleProvider   → OAuth code exchange (nil when not configured)
//   - tokenTTL time.Duration          → cookie lifetime, matches the token's
type AuthHandler struct {
	accounts *service.AuthService
	google   *auth.GoogleProvider
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(
	accounts *service.AuthService,
	google *auth.GoogleProvider,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		google:   google,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

type sessionResponse struct {
	Type  string      `json:"type"`
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister serves POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, sessionResponse{Type: "success", Token: res.Token, User: res.User})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin serves POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, sessionResponse{Type: "success", Token: res.Token, User: res.User})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// Tokens are stateless, so this only removes the browser's copy. A bearer
// token held elsewhere stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"type": "success", "message": "logged out"})
}

// HandleMe serves GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.accounts.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes both into a short-lived HttpOnly cookie and into the
// consent URL. The callback only proceeds if the two match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google login.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the Google profile
//  3. Sign in the linked account, creating it on first login
//  4. Set the session cookie and answer with the session
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		writeError(w, h.logger, apperror.Unauthorized("authorization denied"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.Unauthorized("authentication failed"))
		return
	}
	res, err := h.accounts.LoginOrRegisterGoogle(r.Context(), profile)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, sessionResponse{Type: "success", Token: res.Token, User: res.User})
}

// setSessionCookie stores the token in an HttpOnly cookie for browser
// clients. API clients use the token from the body as a bearer token.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
