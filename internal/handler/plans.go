package handler

import (
	"net/http"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// PlansHandler serves the public plan catalog and the admin plan CRUD. The
// catalog is simple enough that the handler talks to the repository
// directly.
type PlansHandler struct {
	plans    *repository.PlanRepository
	validate *validator.Validate
}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler(plans *repository.PlanRepository) *PlansHandler {
	return &PlansHandler{plans: plans, validate: validator.New()}
}

// List handles GET /api/v1/billing/plans (active plans only).
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), true)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, plans)
}

// AdminList handles GET /admin/plans (includes deactivated plans).
func (h *PlansHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), false)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, plans)
}

// AdminCreate handles POST /admin/plans.
func (h *PlansHandler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	existing, err := h.plans.FindByID(r.Context(), req.ID)
	if err != nil {
		Error(w, err)
		return
	}
	if existing != nil {
		Error(w, domain.ErrBadRequest("plan id already exists"))
		return
	}

	now := time.Now()
	plan := &domain.Plan{
		ID:              req.ID,
		Name:            req.Name,
		PriceCents:      req.PriceCents,
		Interval:        req.Interval,
		CreditsIncluded: req.CreditsIncluded,
		Features:        req.Features,
		IsActive:        true,
		IsPopular:       req.IsPopular,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if plan.Features == nil {
		plan.Features = []string{}
	}

	if err := h.plans.Create(r.Context(), plan); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, plan)
}

// AdminUpdate handles PUT /admin/plans/{id}. Edits never touch accounts
// already subscribed to the plan until their next renewal.
func (h *PlansHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	plan, err := h.plans.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	if plan == nil {
		Error(w, domain.ErrPlanNotFound())
		return
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.PriceCents != nil {
		plan.PriceCents = *req.PriceCents
	}
	if req.CreditsIncluded != nil {
		plan.CreditsIncluded = *req.CreditsIncluded
	}
	if req.Features != nil {
		plan.Features = req.Features
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if req.IsPopular != nil {
		plan.IsPopular = *req.IsPopular
	}

	if err := h.plans.Update(r.Context(), plan); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, plan)
}

// AdminDelete handles DELETE /admin/plans/{id}. Plans are deactivated, not
// removed, so subscribed accounts keep a valid plan reference.
func (h *PlansHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	if plan == nil {
		Error(w, domain.ErrPlanNotFound())
		return
	}

	plan.IsActive = false
	if err := h.plans.Update(r.Context(), plan); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
