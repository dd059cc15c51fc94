package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/apimeter/backend/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler reports API and database health.
type HealthHandler struct {
	db     *pgxpool.Pool
	system *service.SystemService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *pgxpool.Pool, system *service.SystemService) *HealthHandler {
	return &HealthHandler{db: db, system: system}
}

// Check handles GET /health. Returns 503 when the database is unreachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "up"
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "down"
		code = http.StatusServiceUnavailable
	}

	maintenance, _ := h.system.Maintenance(r.Context())

	JSON(w, code, map[string]interface{}{
		"status":      status,
		"database":    dbStatus,
		"maintenance": maintenance.Enabled,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
