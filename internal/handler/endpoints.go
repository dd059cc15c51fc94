package handler

import (
	"net/http"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// EndpointsHandler handles the admin endpoint-registry surface.
type EndpointsHandler struct {
	endpoints *service.EndpointService
}

// NewEndpointsHandler creates a new EndpointsHandler.
func NewEndpointsHandler(endpoints *service.EndpointService) *EndpointsHandler {
	return &EndpointsHandler{endpoints: endpoints}
}

// List handles GET /admin/endpoints.
func (h *EndpointsHandler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.endpoints.List(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, endpoints)
}

// Get handles GET /admin/endpoints/{id}.
func (h *EndpointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.endpoints.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, endpoint)
}

// Create handles POST /admin/endpoints.
func (h *EndpointsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEndpointRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	endpoint, err := h.endpoints.Create(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, endpoint)
}

// Update handles PUT /admin/endpoints/{id}.
func (h *EndpointsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateEndpointRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	endpoint, err := h.endpoints.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, endpoint)
}

// Delete handles DELETE /admin/endpoints/{id}.
func (h *EndpointsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.endpoints.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Bill handles POST /admin/endpoints/{id}/bill — the hook the API gateway
// calls to charge a completed endpoint call to an account.
func (h *EndpointsHandler) Bill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillCallRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	result, err := h.endpoints.BillCall(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}
