package service

import (
	"context"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/go-playground/validator/v10"
)

// endpointStore is the slice of the endpoint repository the service needs.
type endpointStore interface {
	List(ctx context.Context) ([]*domain.Endpoint, error)
	FindByID(ctx context.Context, id string) (*domain.Endpoint, error)
	Create(ctx context.Context, e *domain.Endpoint) error
	Update(ctx context.Context, e *domain.Endpoint) error
	Delete(ctx context.Context, id string) error
	RecordCall(ctx context.Context, id string, latencyMs int64, isError bool) error
}

// EndpointService manages the endpoint registry and is the origin of USAGE
// ledger entries: BillCall debits credits at the endpoint's current cost.
type EndpointService struct {
	endpoints endpointStore
	accounts  accountGetter
	credits   *CreditService
	validate  *validator.Validate
}

// NewEndpointService creates a new EndpointService.
func NewEndpointService(endpoints endpointStore, accounts accountGetter, credits *CreditService) *EndpointService {
	return &EndpointService{
		endpoints: endpoints,
		accounts:  accounts,
		credits:   credits,
		validate:  validator.New(),
	}
}

// List returns all registered endpoints with derived statistics.
func (s *EndpointService) List(ctx context.Context) ([]domain.EndpointResponse, error) {
	endpoints, err := s.endpoints.List(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list endpoints", err)
	}
	responses := make([]domain.EndpointResponse, len(endpoints))
	for i, e := range endpoints {
		responses[i] = e.Response()
	}
	return responses, nil
}

// Get returns a single endpoint.
func (s *EndpointService) Get(ctx context.Context, id string) (*domain.EndpointResponse, error) {
	endpoint, err := s.endpoints.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find endpoint", err)
	}
	if endpoint == nil {
		return nil, domain.ErrNotFound("endpoint not found")
	}
	resp := endpoint.Response()
	return &resp, nil
}

// Create registers a new endpoint.
func (s *EndpointService) Create(ctx context.Context, req *domain.CreateEndpointRequest) (*domain.EndpointResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	now := time.Now()
	endpoint := &domain.Endpoint{
		ID:             domain.NewID(),
		Name:           req.Name,
		Path:           req.Path,
		Method:         req.Method,
		IsActive:       true,
		CreditCost:     req.CreditCost,
		RateLimit:      req.RateLimit,
		RateWindowSecs: req.RateWindowSecs,
		AllowedPlans:   req.AllowedPlans,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if endpoint.AllowedPlans == nil {
		endpoint.AllowedPlans = []string{}
	}
	if endpoint.RateWindowSecs == 0 {
		endpoint.RateWindowSecs = 60
	}

	if err := s.endpoints.Create(ctx, endpoint); err != nil {
		return nil, domain.ErrInternal("failed to create endpoint", err)
	}
	resp := endpoint.Response()
	return &resp, nil
}

// Update applies admin edits. A cost change never re-prices past ledger
// entries; it only affects calls billed after this point.
func (s *EndpointService) Update(ctx context.Context, id string, req *domain.UpdateEndpointRequest) (*domain.EndpointResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	endpoint, err := s.endpoints.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find endpoint", err)
	}
	if endpoint == nil {
		return nil, domain.ErrNotFound("endpoint not found")
	}

	if req.Name != nil {
		endpoint.Name = *req.Name
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}
	if req.CreditCost != nil {
		endpoint.CreditCost = *req.CreditCost
	}
	if req.RateLimit != nil {
		endpoint.RateLimit = *req.RateLimit
	}
	if req.RateWindowSecs != nil {
		endpoint.RateWindowSecs = *req.RateWindowSecs
	}
	if req.AllowedPlans != nil {
		endpoint.AllowedPlans = req.AllowedPlans
	}

	if err := s.endpoints.Update(ctx, endpoint); err != nil {
		return nil, domain.ErrInternal("failed to update endpoint", err)
	}
	resp := endpoint.Response()
	return &resp, nil
}

// Delete removes an endpoint from the registry.
func (s *EndpointService) Delete(ctx context.Context, id string) error {
	endpoint, err := s.endpoints.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find endpoint", err)
	}
	if endpoint == nil {
		return domain.ErrNotFound("endpoint not found")
	}
	if err := s.endpoints.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete endpoint", err)
	}
	return nil
}

// BillCallResult reports the outcome of billing one endpoint call.
type BillCallResult struct {
	Charged     int64                     `json:"charged"`
	Replayed    bool                      `json:"replayed"`
	Transaction *domain.CreditTransaction `json:"transaction,omitempty"`
}

// BillCall records one call against an endpoint: a USAGE debit at the
// current credit cost plus a counter bump. A retried idempotency key
// returns the original debit and bumps no counters.
func (s *EndpointService) BillCall(ctx context.Context, endpointID string, req *domain.BillCallRequest) (*BillCallResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	endpoint, err := s.endpoints.FindByID(ctx, endpointID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find endpoint", err)
	}
	if endpoint == nil {
		return nil, domain.ErrNotFound("endpoint not found")
	}
	if !endpoint.IsActive {
		return nil, domain.ErrBadRequest("endpoint is disabled")
	}

	account, err := s.accounts.FindByID(ctx, req.AccountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}
	if !account.IsActive {
		return nil, domain.ErrForbidden("account is deactivated")
	}
	if !endpoint.AllowsPlan(account.PlanID) {
		return nil, domain.ErrForbidden("plan is not permitted to call this endpoint")
	}

	result := &BillCallResult{Charged: endpoint.ChargeAmount()}
	if result.Charged > 0 {
		tx, replayed, err := s.credits.Record(ctx, account.ID, domain.TransactionUsage,
			result.Charged, "usage: "+endpoint.Name, domain.SystemActor, &endpoint.ID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		result.Transaction = tx
		result.Replayed = replayed
		if replayed {
			return result, nil
		}
	}

	if err := s.endpoints.RecordCall(ctx, endpoint.ID, req.LatencyMs, req.IsError); err != nil {
		return nil, domain.ErrInternal("failed to record endpoint call", err)
	}
	return result, nil
}
