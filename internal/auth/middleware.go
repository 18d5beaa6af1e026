package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/sakif/youthhub/internal/model"
)

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow the identity we store.
type contextKey string

const identityKey contextKey = "identity"

// CookieName is the HttpOnly cookie the login handlers set for browsers.
const CookieName = "token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the Authorization header ("Bearer <jwt>"), falling
// back to the "token" cookie, validates it, and stores the Identity in the
// request context. A missing or invalid token stops the chain with 401 and the
// usual {"type":"unauthorized"} body.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				writeDenied(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole is the static role gate. It must run after RequireAuth.
// Callers whose role is not in the list get 403.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if !slices.Contains(roles, id.Role) {
				writeDenied(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithIdentity returns a copy of ctx carrying id. Handler tests use it
// to skip token minting.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil && id.UserID != ""
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.UserID, true
}

// extractIdentity reads the bearer header (or cookie) and validates it.
func extractIdentity(r *http.Request, tokens *TokenService) (*Identity, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return tokens.Validate(cookie.Value)
}

// writeDenied writes the small JSON body used for 401/403. It lives here
// rather than in handler so that auth does not import handler.
func writeDenied(w http.ResponseWriter, status int, typ, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"type":"` + typ + `","error":"` + typ + `","message":"` + message + `"}`))
}
