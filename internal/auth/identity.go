package auth

import (
	"context"
	"net/http"
)

// Identity is resolved upstream: the gateway in front of this service has
// already validated credentials and forwards the caller in trusted headers.
// Nothing here re-validates tokens.

type contextKey string

const (
	identityKey contextKey = "lottery-identity"

	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"

	RoleAdmin = "admin"
)

type Identity struct {
	UserID string
	Role   string
}

// FromContext returns the caller identity set by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Middleware requires a resolved caller identity on every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			http.Error(w, "missing caller identity", http.StatusUnauthorized)
			return
		}
		id := Identity{
			UserID: userID,
			Role:   r.Header.Get(HeaderRole),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// RequireAdmin guards the administrative endpoints (round lifecycle, draw).
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok || id.Role != RoleAdmin {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
