package domain

import "time"

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "TRIAL"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
)

// Live reports whether the subscription currently entitles the account to a
// plan (at most one live subscription exists per account).
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionTrial || s == SubscriptionActive
}

// CanTransitionTo enforces the monotonic state machine:
// TRIAL -> ACTIVE -> CANCELED/EXPIRED. Canceled and expired subscriptions are
// terminal; a new subscription is created instead of resurrecting one.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	switch s {
	case SubscriptionTrial:
		return next == SubscriptionActive || next == SubscriptionCanceled || next == SubscriptionExpired
	case SubscriptionActive:
		return next == SubscriptionCanceled || next == SubscriptionExpired
	default:
		return false
	}
}

// Subscription maps an account to a plan for a billing period.
type Subscription struct {
	ID                 string             `json:"id"`
	AccountID          string             `json:"accountId"`
	PlanID             string             `json:"planId"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	AutoRenew          bool               `json:"autoRenew"`
	PaymentProviderID  string             `json:"paymentProviderId,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// CheckoutRequest is the input for creating a checkout session.
type CheckoutRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// PaymentLinkResponse returns the URL to redirect the user to for payment.
type PaymentLinkResponse struct {
	PaymentURL string `json:"paymentUrl"`
	OrderID    string `json:"orderId"`
}

// ChangePlanRequest is the validated input for an admin plan change.
type ChangePlanRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	PlanID    string `json:"planId" validate:"required"`
}

// PaymentWebhookPayload is the notification body posted by the payment
// gateway after a checkout completes.
type PaymentWebhookPayload struct {
	OrderID   string `json:"orderId"`
	AccountID string `json:"accountId"`
	PlanID    string `json:"planId"`
	Status    string `json:"status"`
}
