package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mototumen/community-api/internal/roles"
	"github.com/mototumen/community-api/internal/service"
)

type contextKey string

const (
	// HeaderAuthToken is the bearer header the clients send.
	HeaderAuthToken = "X-Auth-Token"

	ContextKeyProfile contextKey = "profile"
	ContextKeyToken   contextKey = "token"
)

// TokenFromRequest extracts the bearer token, accepting both the X-Auth-Token
// header and an Authorization: Bearer fallback.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderAuthToken)); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Auth verifies the bearer token against the auth service and injects the
// resolved profile into the request context.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			profile, err := authService.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyProfile, profile)
			ctx = context.WithValue(ctx, ContextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProfile returns the authenticated profile from the context.
func GetProfile(ctx context.Context) *service.UserProfile {
	val, _ := ctx.Value(ContextKeyProfile).(*service.UserProfile)
	return val
}

// GetToken returns the raw bearer token from the context.
func GetToken(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyToken).(string)
	return val
}

// RequireAdmin restricts the route to admin-panel roles.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := GetProfile(r.Context())
		if profile == nil || !profile.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission restricts the route to roles holding the permission.
func RequirePermission(perm roles.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile := GetProfile(r.Context())
			if profile == nil || !roles.HasPermission(roles.Normalize(profile.Role), perm) {
				writeError(w, http.StatusForbidden, "Permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
