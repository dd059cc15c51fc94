package service

import (
	"context"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/pkg/payment"
	"github.com/go-playground/validator/v10"
)

// subscriptionStore is the slice of the subscription repository the billing
// service needs.
type subscriptionStore interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	FindLiveByAccountID(ctx context.Context, accountID string) (*domain.Subscription, error)
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus, autoRenew bool) error
	UpdatePlan(ctx context.Context, id, planID string) error
}

// planGetter looks plans up in the catalog.
type planGetter interface {
	FindByID(ctx context.Context, id string) (*domain.Plan, error)
}

// planChanger applies a plan swap and its credit delta atomically.
type planChanger interface {
	ApplyPlanChange(ctx context.Context, accountID, planID string, newTotal int64) (*domain.Account, error)
}

// SubscriptionService governs plan changes and their effect on the credit
// pool. Plan changes follow the top-up-delta policy: creditsTotal becomes
// the new allotment and creditsRemaining moves by the allotment difference,
// floored at zero on downgrade.
type SubscriptionService struct {
	subs     subscriptionStore
	plans    planGetter
	accounts accountGetter
	ledger   planChanger
	payment  payment.Gateway
	validate *validator.Validate
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(subs subscriptionStore, plans planGetter, accounts accountGetter, ledger planChanger, gateway payment.Gateway) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		plans:    plans,
		accounts: accounts,
		ledger:   ledger,
		payment:  gateway,
		validate: validator.New(),
	}
}

// Current returns the live subscription for an account, or nil.
func (s *SubscriptionService) Current(ctx context.Context, accountID string) (*domain.Subscription, error) {
	return s.subs.FindLiveByAccountID(ctx, accountID)
}

// CreateCheckout creates a payment link for purchasing a plan.
func (s *SubscriptionService) CreateCheckout(ctx context.Context, accountID, planID string) (*domain.PaymentLinkResponse, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find plan", err)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound()
	}
	if !plan.IsActive {
		return nil, domain.ErrBadRequest("plan is no longer offered")
	}
	if plan.PriceCents == 0 {
		return nil, domain.ErrBadRequest("free plan does not require checkout")
	}

	orderID := domain.NewID()
	paymentURL, err := s.payment.CreatePaymentLink(accountID, plan.ID, orderID, plan.PriceCents)
	if err != nil {
		return nil, domain.ErrInternal("failed to create payment link", err)
	}

	return &domain.PaymentLinkResponse{
		PaymentURL: paymentURL,
		OrderID:    orderID,
	}, nil
}

// HandlePaymentWebhook processes a payment notification. Successful payments
// activate the purchased plan.
func (s *SubscriptionService) HandlePaymentWebhook(ctx context.Context, payload *domain.PaymentWebhookPayload) error {
	if payload.Status != payment.StatusSuccess {
		return nil
	}
	_, err := s.Activate(ctx, payload.AccountID, payload.PlanID, payload.OrderID)
	return err
}

// Activate starts (or switches to) a paid subscription for an account and
// applies the plan's credit allotment. An existing live subscription on a
// different plan is canceled and replaced; the same plan twice is a conflict.
func (s *SubscriptionService) Activate(ctx context.Context, accountID, planID, providerID string) (*domain.Subscription, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find plan", err)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound()
	}

	existing, err := s.subs.FindLiveByAccountID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if existing != nil {
		if existing.PlanID == planID {
			return nil, domain.ErrConflict("account already has an active subscription for this plan")
		}
		// Plan switch: the old subscription ends, a new one is created.
		// Canceled subscriptions are never resurrected.
		if err := s.subs.UpdateStatus(ctx, existing.ID, domain.SubscriptionCanceled, false); err != nil {
			return nil, domain.ErrInternal("failed to cancel previous subscription", err)
		}
	}

	if _, err := s.ledger.ApplyPlanChange(ctx, accountID, plan.ID, plan.CreditsIncluded); err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:                 domain.NewID(),
		AccountID:          accountID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		AutoRenew:          true,
		PaymentProviderID:  providerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to create subscription", err)
	}
	return sub, nil
}

// ChangePlan is the admin plan-change path. It swaps the account's plan in
// place and adjusts credits by the allotment delta. Downgrading below the
// credits already consumed this period is rejected.
func (s *SubscriptionService) ChangePlan(ctx context.Context, req *domain.ChangePlanRequest) (*domain.Account, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	plan, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find plan", err)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound()
	}
	if !plan.IsActive {
		return nil, domain.ErrBadRequest("plan is no longer offered")
	}

	account, err := s.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}
	if account.PlanID == plan.ID {
		return nil, domain.ErrBadRequest("account is already on this plan")
	}

	consumed := account.CreditsTotal - account.CreditsRemaining
	if consumed < 0 {
		consumed = 0
	}
	if plan.CreditsIncluded < consumed {
		return nil, domain.ErrConflict("cannot downgrade below credits already consumed this period")
	}

	updated, err := s.ledger.ApplyPlanChange(ctx, account.ID, plan.ID, plan.CreditsIncluded)
	if err != nil {
		return nil, err
	}

	// Keep the subscription row in step with the account's plan.
	existing, err := s.subs.FindLiveByAccountID(ctx, account.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if existing != nil {
		if err := s.subs.UpdatePlan(ctx, existing.ID, plan.ID); err != nil {
			return nil, domain.ErrInternal("failed to update subscription plan", err)
		}
	}
	return updated, nil
}

// Cancel transitions a subscription to CANCELED and forces autoRenew off.
// Already-consumed credits are never revoked.
func (s *SubscriptionService) Cancel(ctx context.Context, subscriptionID, requesterID string, requesterRole string) error {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil {
		return domain.ErrNotFound("subscription not found")
	}
	if sub.AccountID != requesterID && !domain.IsAdminRole(requesterRole) {
		return domain.ErrForbidden("not your subscription")
	}
	if !sub.Status.CanTransitionTo(domain.SubscriptionCanceled) {
		return domain.ErrConflict("subscription cannot be canceled from status " + string(sub.Status))
	}

	if err := s.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionCanceled, false); err != nil {
		return domain.ErrInternal("failed to cancel subscription", err)
	}
	return nil
}
