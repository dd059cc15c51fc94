package service

import (
	"context"
	"testing"

	"github.com/apimeter/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoints struct {
	endpoints map[string]*domain.Endpoint
	calls     int
}

func (f *fakeEndpoints) List(ctx context.Context) ([]*domain.Endpoint, error) {
	out := make([]*domain.Endpoint, 0, len(f.endpoints))
	for _, e := range f.endpoints {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEndpoints) FindByID(ctx context.Context, id string) (*domain.Endpoint, error) {
	return f.endpoints[id], nil
}

func (f *fakeEndpoints) Create(ctx context.Context, e *domain.Endpoint) error {
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeEndpoints) Update(ctx context.Context, e *domain.Endpoint) error {
	f.endpoints[e.ID] = e
	return nil
}

func (f *fakeEndpoints) Delete(ctx context.Context, id string) error {
	delete(f.endpoints, id)
	return nil
}

func (f *fakeEndpoints) RecordCall(ctx context.Context, id string, latencyMs int64, isError bool) error {
	f.calls++
	e := f.endpoints[id]
	e.TotalCalls++
	e.TotalLatencyMs += latencyMs
	if isError {
		e.ErrorCount++
	}
	return nil
}

func newTestEndpointService(endpoint *domain.Endpoint, account *domain.Account) (*EndpointService, *fakeEndpoints, *fakeLedger) {
	store := &fakeEndpoints{endpoints: map[string]*domain.Endpoint{}}
	if endpoint != nil {
		store.endpoints[endpoint.ID] = endpoint
	}
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{}}
	if account != nil {
		accounts.accounts[account.ID] = account
	}
	ledger := &fakeLedger{}
	credits := NewCreditService(ledger, accounts, domain.OverageBlock, nil)
	return NewEndpointService(store, accounts, credits), store, ledger
}

func TestBillCallDebitsAndRecords(t *testing.T) {
	endpoint := &domain.Endpoint{ID: "ep-1", Name: "search", IsActive: true, CreditCost: 2.5}
	account := &domain.Account{ID: "acc-1", PlanID: "starter", IsActive: true}
	svc, store, ledger := newTestEndpointService(endpoint, account)
	ctx := context.Background()

	_, err := ledger.Append(ctx, &domain.CreditTransaction{AccountID: "acc-1", Type: domain.TransactionAdd, Amount: 10}, false)
	require.NoError(t, err)

	result, err := svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "acc-1", LatencyMs: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Charged, "fractional cost rounds up")
	assert.False(t, result.Replayed)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, int64(7), result.Transaction.BalanceAfter)
	assert.Equal(t, "ep-1", *result.Transaction.EndpointID)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, int64(1), endpoint.TotalCalls)
	assert.Equal(t, int64(120), endpoint.TotalLatencyMs)
}

func TestBillCallIdempotentRetrySkipsCounters(t *testing.T) {
	endpoint := &domain.Endpoint{ID: "ep-1", Name: "search", IsActive: true, CreditCost: 1}
	account := &domain.Account{ID: "acc-1", PlanID: "starter", IsActive: true}
	svc, store, ledger := newTestEndpointService(endpoint, account)
	ctx := context.Background()

	_, err := ledger.Append(ctx, &domain.CreditTransaction{AccountID: "acc-1", Type: domain.TransactionAdd, Amount: 10}, false)
	require.NoError(t, err)

	first, err := svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "acc-1", IdempotencyKey: "req-1"})
	require.NoError(t, err)

	second, err := svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "acc-1", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(9), ledger.balance, "charged once, not twice")
	assert.Equal(t, 1, store.calls, "retry bumps no counters")
}

func TestBillCallGuards(t *testing.T) {
	endpoint := &domain.Endpoint{ID: "ep-1", Name: "search", IsActive: true, CreditCost: 1, AllowedPlans: []string{"professional"}}
	account := &domain.Account{ID: "acc-1", PlanID: "free", IsActive: true}
	svc, _, _ := newTestEndpointService(endpoint, account)
	ctx := context.Background()

	_, err := svc.BillCall(ctx, "missing", &domain.BillCallRequest{AccountID: "acc-1"})
	assert.Error(t, err)

	_, err = svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "nope"})
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	_, err = svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "acc-1"})
	assert.Error(t, err, "plan not in allow-list")

	endpoint.AllowedPlans = nil
	endpoint.IsActive = false
	_, err = svc.BillCall(ctx, "ep-1", &domain.BillCallRequest{AccountID: "acc-1"})
	assert.Error(t, err, "disabled endpoint")
}

func TestBillCallInsufficientBalance(t *testing.T) {
	endpoint := &domain.Endpoint{ID: "ep-1", Name: "search", IsActive: true, CreditCost: 5}
	account := &domain.Account{ID: "acc-1", PlanID: "starter", IsActive: true}
	svc, store, _ := newTestEndpointService(endpoint, account)

	_, err := svc.BillCall(context.Background(), "ep-1", &domain.BillCallRequest{AccountID: "acc-1"})
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))
	assert.Zero(t, store.calls, "failed charge records no call")
}

func TestBillCallFreeEndpoint(t *testing.T) {
	endpoint := &domain.Endpoint{ID: "ep-1", Name: "status", IsActive: true, CreditCost: 0}
	account := &domain.Account{ID: "acc-1", PlanID: "free", IsActive: true}
	svc, store, ledger := newTestEndpointService(endpoint, account)

	result, err := svc.BillCall(context.Background(), "ep-1", &domain.BillCallRequest{AccountID: "acc-1", LatencyMs: 8})
	require.NoError(t, err)
	assert.Zero(t, result.Charged)
	assert.Nil(t, result.Transaction)
	assert.Empty(t, ledger.entries, "no ledger entry for a zero-cost call")
	assert.Equal(t, 1, store.calls)
}
