package handler

import (
	"net/http"

	"github.com/apimeter/backend/internal/contextkeys"
	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// APIKeyHandler handles API-key lifecycle endpoints.
type APIKeyHandler struct {
	keys *service.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

func accountIDFrom(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(contextkeys.AccountID).(string)
	return id, ok && id != ""
}

// List handles GET /api/v1/auth/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	keys, err := h.keys.List(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, keys)
}

// Create handles POST /api/v1/auth/api-keys. The response carries the
// plaintext secret exactly once.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CreateAPIKeyRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	key, err := h.keys.Issue(r.Context(), accountID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, key)
}

// Update handles PATCH /api/v1/auth/api-keys/{id}.
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.UpdateAPIKeyRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	key, err := h.keys.Update(r.Context(), chi.URLParam(r, "id"), accountID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, key)
}

// Delete handles DELETE /api/v1/auth/api-keys/{id}.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.keys.Revoke(r.Context(), chi.URLParam(r, "id"), accountID); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
