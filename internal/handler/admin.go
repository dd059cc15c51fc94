package handler

import (
	"net/http"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/repository"
	"github.com/apimeter/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// AdminHandler handles account management and platform stats for admins.
type AdminHandler struct {
	auth    *service.AuthService
	billing *service.SubscriptionService
	system  *service.SystemService

	accounts *repository.AccountRepository
	subs     *repository.SubscriptionRepository
	ledger   *repository.LedgerRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth *service.AuthService, billing *service.SubscriptionService,
	system *service.SystemService, accounts *repository.AccountRepository,
	subs *repository.SubscriptionRepository, ledger *repository.LedgerRepository) *AdminHandler {
	return &AdminHandler{
		auth:     auth,
		billing:  billing,
		system:   system,
		accounts: accounts,
		subs:     subs,
		ledger:   ledger,
	}
}

// ListAccounts handles GET /admin/accounts?search=...
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.auth.ListAccounts(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, accounts)
}

// GetAccount handles GET /admin/accounts/{id}.
func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.auth.GetAccountByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, account)
}

// CreateAccount handles POST /admin/accounts.
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	account, err := h.auth.CreateAccount(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, account)
}

// UpdateAccount handles PUT /admin/accounts/{id}.
func (h *AdminHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAccountRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	account, err := h.auth.UpdateAccount(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, account)
}

// ChangePlan handles PUT /admin/users/{id}/plan. Credits move by the
// allotment delta; the ledger records the adjustment.
func (h *AdminHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlanID string `json:"planId"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		Error(w, err)
		return
	}

	account, err := h.billing.ChangePlan(r.Context(), &domain.ChangePlanRequest{
		AccountID: chi.URLParam(r, "id"),
		PlanID:    body.PlanID,
	})
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, account.Response())
}

// DeactivateAccount handles DELETE /admin/accounts/{id}. Accounts are
// deactivated rather than removed so their ledger history survives.
func (h *AdminHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeactivateAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetStats handles GET /admin/stats — platform-wide counts for the admin
// overview page.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalAccounts, err := h.accounts.Count(ctx)
	if err != nil {
		Error(w, err)
		return
	}
	activeSubs, err := h.subs.CountByStatus(ctx, domain.SubscriptionActive)
	if err != nil {
		Error(w, err)
		return
	}
	trialSubs, err := h.subs.CountByStatus(ctx, domain.SubscriptionTrial)
	if err != nil {
		Error(w, err)
		return
	}
	totalTransactions, err := h.ledger.Count(ctx)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]int64{
		"totalAccounts":       totalAccounts,
		"activeSubscriptions": activeSubs,
		"trialSubscriptions":  trialSubs,
		"totalTransactions":   totalTransactions,
	})
}

// GetMaintenance handles GET /admin/system/maintenance.
func (h *AdminHandler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	state, err := h.system.Maintenance(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, state)
}

// SetMaintenance handles PUT /admin/system/maintenance (super-admin only).
func (h *AdminHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var state service.MaintenanceState
	if err := DecodeJSON(r, &state); err != nil {
		Error(w, err)
		return
	}

	if err := h.system.SetMaintenance(r.Context(), state); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, state)
}
