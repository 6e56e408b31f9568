package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	h "eventsettlement/internal/delivery/http/helpers"
	"eventsettlement/internal/domain"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	rolesKey  contextKey = "roles"
)

// TokenCookie is the cookie the web client stores its session token in.
const TokenCookie = "token"

// SetUserID returns a context with the user ID set. Used by auth middleware.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// SetRoles returns a context carrying the caller's roles.
func SetRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

// RolesFromContext returns the roles RequireAuth stored for the caller.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}

// RequireAuth returns a wrapper that validates the caller's token and sets the user ID in the request context.
// The token is read from a Bearer Authorization header, falling back to the token cookie.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, msg := tokenFromRequest(r)
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, msg)
				return
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			ctx := SetUserID(r.Context(), principal.UserID)
			ctx = SetRoles(ctx, principal.Roles)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole returns a wrapper that responds 403 unless the authenticated caller
// holds role. It must run inside RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(RolesFromContext(r.Context()), role) {
				userID, _ := UserIDFromContext(r.Context())
				logger.InfoContext(r.Context(), "role required", "path", r.URL.Path, "user_id", userID, "role", role)
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, role+" role required")
				return
			}
			next(w, r)
		}
	}
}

func tokenFromRequest(r *http.Request) (token, problem string) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return "", "invalid authorization format"
		}
		token = strings.TrimSpace(auth[len(prefix):])
		if token == "" {
			return "", "missing token"
		}
		return token, ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, ""
	}
	return "", "missing authorization header"
}
