package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// CreditsHandler handles ledger history and usage-stat reads, plus the
// admin add/remove mutations.
type CreditsHandler struct {
	credits *service.CreditService
	usage   *service.UsageService
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(credits *service.CreditService, usage *service.UsageService) *CreditsHandler {
	return &CreditsHandler{credits: credits, usage: usage}
}

func historyFilterFrom(r *http.Request) domain.HistoryFilter {
	q := r.URL.Query()
	f := domain.HistoryFilter{}
	if t := q.Get("type"); t != "" {
		f.Type = domain.TransactionType(t)
	}
	if v := q.Get("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = ts
		}
	}
	if v := q.Get("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = ts
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	return f
}

// Balance handles GET /api/v1/auth/credits/balance.
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	account, err := h.credits.Balance(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int64{
		"creditsRemaining": account.CreditsRemaining,
		"creditsTotal":     account.CreditsTotal,
	})
}

// History handles GET /api/v1/auth/credits/history.
func (h *CreditsHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	entries, err := h.credits.History(r.Context(), accountID, historyFilterFrom(r))
	if err != nil {
		Error(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.CreditTransaction{}
	}
	JSON(w, http.StatusOK, entries)
}

// UsageStats handles GET /api/v1/auth/credits/usage-stats.
func (h *CreditsHandler) UsageStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	rangeDays, _ := strconv.Atoi(r.URL.Query().Get("range"))

	daily, err := h.usage.DailyUsage(r.Context(), accountID, rangeDays)
	if err != nil {
		Error(w, err)
		return
	}
	byEndpoint, err := h.usage.UsageByEndpoint(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	if byEndpoint == nil {
		byEndpoint = []domain.EndpointUsage{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"daily":      daily,
		"byEndpoint": byEndpoint,
	})
}

// AdminAdd handles POST /admin/credits/add.
func (h *CreditsHandler) AdminAdd(w http.ResponseWriter, r *http.Request) {
	h.adminAdjust(w, r, domain.TransactionAdd)
}

// AdminRemove handles POST /admin/credits/remove.
func (h *CreditsHandler) AdminRemove(w http.ResponseWriter, r *http.Request) {
	h.adminAdjust(w, r, domain.TransactionRemove)
}

func (h *CreditsHandler) adminAdjust(w http.ResponseWriter, r *http.Request, typ domain.TransactionType) {
	actorID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.AdjustCreditsRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	tx, err := h.credits.AdminAdjust(r.Context(), &req, typ, actorID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, tx)
}

// AdminHistory handles GET /admin/credits/{accountId}/history.
func (h *CreditsHandler) AdminHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	entries, err := h.credits.History(r.Context(), accountID, historyFilterFrom(r))
	if err != nil {
		Error(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.CreditTransaction{}
	}
	JSON(w, http.StatusOK, entries)
}

// AdminReconcile handles GET /admin/credits/{accountId}/reconcile.
func (h *CreditsHandler) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.credits.Reconcile(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rec)
}
