package handler

import (
	"net/http"

	"github.com/apimeter/backend/internal/service"
)

// DashboardHandler serves the signed-in account's headline stats.
type DashboardHandler struct {
	usage *service.UsageService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(usage *service.UsageService) *DashboardHandler {
	return &DashboardHandler{usage: usage}
}

// Stats handles GET /api/v1/dashboard/stats.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	stats, err := h.usage.Stats(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}
