package middleware

import (
	"net/http"

	"github.com/apimeter/backend/internal/contextkeys"
	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/handler"
)

// AdminOnly ensures the account has ADMIN or SUPER_ADMIN role.
// Must be used AFTER Auth middleware which sets contextkeys.AccountRole.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.AccountRole).(string)
		if !ok || !domain.IsAdminRole(role) {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SuperAdminOnly ensures the account has SUPER_ADMIN role.
func SuperAdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.AccountRole).(string)
		if !ok || role != domain.RoleSuperAdmin {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: super-admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
