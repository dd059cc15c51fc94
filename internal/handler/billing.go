package handler

import (
	"io"
	"net/http"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/service"
	"github.com/apimeter/backend/pkg/payment"
)

// BillingHandler handles checkout, subscription, and payment webhooks.
type BillingHandler struct {
	subs    *service.SubscriptionService
	gateway payment.Gateway
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(subs *service.SubscriptionService, gateway payment.Gateway) *BillingHandler {
	return &BillingHandler{subs: subs, gateway: gateway}
}

// CreateCheckout handles POST /api/v1/billing/checkout.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.subs.CreateCheckout(r.Context(), accountID, req.PlanID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// GetSubscription handles GET /api/v1/billing/subscription.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	sub, err := h.subs.Current(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	if sub == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"status": "none"})
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Cancel handles POST /api/v1/billing/cancel. The caller cancels their own
// live subscription.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFrom(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	sub, err := h.subs.Current(r.Context(), accountID)
	if err != nil {
		Error(w, err)
		return
	}
	if sub == nil {
		Error(w, domain.ErrNotFound("no active subscription"))
		return
	}

	if err := h.subs.Cancel(r.Context(), sub.ID, accountID, domain.RoleUser); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Webhook handles POST /api/v1/billing/webhook, called by the payment
// gateway after checkout. The signature header is verified before the
// payload is trusted.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read webhook body"))
		return
	}

	if !h.gateway.VerifySignature(body, r.Header.Get("X-Signature")) {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook signature"})
		return
	}

	var payload domain.PaymentWebhookPayload
	if err := unmarshalJSON(body, &payload); err != nil {
		Error(w, err)
		return
	}

	if err := h.subs.HandlePaymentWebhook(r.Context(), &payload); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
