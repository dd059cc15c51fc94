package domain

import "time"

// Plan is a billing tier with a monthly credit allotment. Plans live in the
// database so admins can define custom tiers beyond the seeded defaults.
type Plan struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PriceCents      int64     `json:"priceCents"` // monthly price in USD cents
	Interval        string    `json:"interval"`   // "month" or "year"
	CreditsIncluded int64     `json:"creditsIncluded"`
	Features        []string  `json:"features"`
	IsActive        bool      `json:"isActive"`
	IsPopular       bool      `json:"isPopular"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DefaultPlans returns the seed catalog inserted on first startup.
// Deactivating or editing a plan later never touches accounts already
// subscribed to it until their next renewal.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:              "free",
			Name:            "Free",
			PriceCents:      0,
			Interval:        "month",
			CreditsIncluded: 100,
			Features:        []string{"100 credits / month", "1 API key", "Community support"},
			IsActive:        true,
		},
		{
			ID:              "starter",
			Name:            "Starter",
			PriceCents:      900, // $9/mo
			Interval:        "month",
			CreditsIncluded: 1000,
			Features:        []string{"1,000 credits / month", "5 API keys", "Email support"},
			IsActive:        true,
		},
		{
			ID:              "professional",
			Name:            "Professional",
			PriceCents:      2900, // $29/mo
			Interval:        "month",
			CreditsIncluded: 5000,
			Features:        []string{"5,000 credits / month", "Unlimited API keys", "Priority support", "Usage analytics"},
			IsActive:        true,
			IsPopular:       true,
		},
		{
			ID:              "enterprise",
			Name:            "Enterprise",
			PriceCents:      9900, // $99/mo
			Interval:        "month",
			CreditsIncluded: 25000,
			Features:        []string{"25,000 credits / month", "Unlimited API keys", "Dedicated support", "Custom endpoints", "SLA"},
			IsActive:        true,
		},
	}
}

// CreatePlanRequest is the validated input for admin plan creation.
type CreatePlanRequest struct {
	ID              string   `json:"id" validate:"required,min=2,max=50,lowercase"`
	Name            string   `json:"name" validate:"required,min=1,max=100"`
	PriceCents      int64    `json:"priceCents" validate:"gte=0"`
	Interval        string   `json:"interval" validate:"required,oneof=month year"`
	CreditsIncluded int64    `json:"creditsIncluded" validate:"gte=0"`
	Features        []string `json:"features"`
	IsPopular       bool     `json:"isPopular"`
}

// UpdatePlanRequest is the validated input for admin plan updates.
type UpdatePlanRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=100"`
	PriceCents      *int64   `json:"priceCents" validate:"omitempty,gte=0"`
	CreditsIncluded *int64   `json:"creditsIncluded" validate:"omitempty,gte=0"`
	Features        []string `json:"features"`
	IsActive        *bool    `json:"isActive"`
	IsPopular       *bool    `json:"isPopular"`
}
