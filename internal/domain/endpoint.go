package domain

import (
	"math"
	"time"
)

// Endpoint is a registry entry for a billable API endpoint. The aggregate
// counters are bumped by the billing path; errorRate and avgResponseTime are
// derived, never stored.
type Endpoint struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	Method         string    `json:"method"`
	IsActive       bool      `json:"isActive"`
	CreditCost     float64   `json:"creditCost"` // may be fractional; charged rounded up
	RateLimit      int       `json:"rateLimit"`  // requests per window, 0 = unlimited
	RateWindowSecs int       `json:"rateWindowSecs"`
	AllowedPlans   []string  `json:"allowedPlans"` // empty = all plans
	TotalCalls     int64     `json:"totalCalls"`
	ErrorCount     int64     `json:"errorCount"`
	TotalLatencyMs int64     `json:"totalLatencyMs"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ChargeAmount is the integer credit debit for one call at the current cost.
// Fractional costs round up; cost changes apply only to future calls.
func (e *Endpoint) ChargeAmount() int64 {
	if e.CreditCost <= 0 {
		return 0
	}
	return int64(math.Ceil(e.CreditCost))
}

// ErrorRate returns the fraction of calls that errored, in [0, 1].
func (e *Endpoint) ErrorRate() float64 {
	if e.TotalCalls == 0 {
		return 0
	}
	return float64(e.ErrorCount) / float64(e.TotalCalls)
}

// AvgResponseTime returns the mean latency in milliseconds.
func (e *Endpoint) AvgResponseTime() float64 {
	if e.TotalCalls == 0 {
		return 0
	}
	return float64(e.TotalLatencyMs) / float64(e.TotalCalls)
}

// AllowsPlan reports whether the given plan may call this endpoint.
func (e *Endpoint) AllowsPlan(planID string) bool {
	if len(e.AllowedPlans) == 0 {
		return true
	}
	for _, p := range e.AllowedPlans {
		if p == planID {
			return true
		}
	}
	return false
}

// EndpointResponse is the API representation with derived statistics.
type EndpointResponse struct {
	Endpoint
	ErrorRate       float64 `json:"errorRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
}

// Response converts an Endpoint to its API representation.
func (e *Endpoint) Response() EndpointResponse {
	return EndpointResponse{
		Endpoint:        *e,
		ErrorRate:       e.ErrorRate(),
		AvgResponseTime: e.AvgResponseTime(),
	}
}

// CreateEndpointRequest is the validated input for registering an endpoint.
type CreateEndpointRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=100"`
	Path           string   `json:"path" validate:"required,startswith=/"`
	Method         string   `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	CreditCost     float64  `json:"creditCost" validate:"gte=0"`
	RateLimit      int      `json:"rateLimit" validate:"gte=0"`
	RateWindowSecs int      `json:"rateWindowSecs" validate:"gte=0"`
	AllowedPlans   []string `json:"allowedPlans"`
}

// UpdateEndpointRequest is the validated input for endpoint updates.
type UpdateEndpointRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=100"`
	IsActive       *bool    `json:"isActive"`
	CreditCost     *float64 `json:"creditCost" validate:"omitempty,gte=0"`
	RateLimit      *int     `json:"rateLimit" validate:"omitempty,gte=0"`
	RateWindowSecs *int     `json:"rateWindowSecs" validate:"omitempty,gte=0"`
	AllowedPlans   []string `json:"allowedPlans"`
}

// BillCallRequest records one billed call against an endpoint. The
// idempotency key protects against double-charging on gateway retries.
type BillCallRequest struct {
	AccountID      string `json:"accountId" validate:"required"`
	LatencyMs      int64  `json:"latencyMs" validate:"gte=0"`
	IsError        bool   `json:"isError"`
	IdempotencyKey string `json:"idempotencyKey"`
}
