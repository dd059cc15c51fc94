package middleware

import (
	"net/http"

	"github.com/apimeter/backend/internal/contextkeys"
	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/handler"
	"github.com/apimeter/backend/internal/service"
)

// Maintenance returns 503 for non-admin traffic while maintenance mode is
// on. Admins keep access so they can turn it back off. Must run after Auth.
func Maintenance(systemSvc *service.SystemService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := systemSvc.Maintenance(r.Context())
			if err == nil && state.Enabled {
				role, _ := r.Context().Value(contextkeys.AccountRole).(string)
				if !domain.IsAdminRole(role) {
					msg := state.Message
					if msg == "" {
						msg = "service is under maintenance, try again later"
					}
					handler.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": msg})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
