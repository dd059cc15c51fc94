package service

import (
	"context"
	"testing"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubs struct {
	subs map[string]*domain.Subscription
}

func newFakeSubs(subs ...*domain.Subscription) *fakeSubs {
	f := &fakeSubs{subs: make(map[string]*domain.Subscription)}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubs) Create(ctx context.Context, sub *domain.Subscription) error {
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeSubs) FindLiveByAccountID(ctx context.Context, accountID string) (*domain.Subscription, error) {
	for _, s := range f.subs {
		if s.AccountID == accountID && s.Status.Live() {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubs) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return f.subs[id], nil
}

func (f *fakeSubs) UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus, autoRenew bool) error {
	f.subs[id].Status = status
	f.subs[id].AutoRenew = autoRenew
	return nil
}

func (f *fakeSubs) UpdatePlan(ctx context.Context, id, planID string) error {
	f.subs[id].PlanID = planID
	return nil
}

type fakePlans struct {
	plans map[string]*domain.Plan
}

func (f *fakePlans) FindByID(ctx context.Context, id string) (*domain.Plan, error) {
	return f.plans[id], nil
}

// fakePlanChanger applies the top-up-delta math the ledger repository does:
// creditsTotal becomes the new allotment, creditsRemaining moves by the
// allotment difference, floored at zero.
type fakePlanChanger struct {
	accounts *fakeAccounts
	calls    int
}

func (f *fakePlanChanger) ApplyPlanChange(ctx context.Context, accountID, planID string, newTotal int64) (*domain.Account, error) {
	f.calls++
	a := f.accounts.accounts[accountID]
	if a == nil {
		return nil, domain.ErrAccountNotFound()
	}
	delta := newTotal - a.CreditsTotal
	a.CreditsTotal = newTotal
	a.CreditsRemaining += delta
	if a.CreditsRemaining < 0 {
		a.CreditsRemaining = 0
	}
	a.PlanID = planID
	return a, nil
}

func defaultPlanMap() map[string]*domain.Plan {
	plans := make(map[string]*domain.Plan)
	for _, p := range domain.DefaultPlans() {
		plan := p
		plans[plan.ID] = &plan
	}
	return plans
}

func newTestSubscriptionService(subs *fakeSubs, accounts *fakeAccounts) (*SubscriptionService, *fakePlanChanger) {
	changer := &fakePlanChanger{accounts: accounts}
	svc := NewSubscriptionService(subs, &fakePlans{plans: defaultPlanMap()}, accounts, changer, payment.NewMockGateway())
	return svc, changer
}

func TestCreateCheckout(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "free", IsActive: true},
	}}
	svc, _ := newTestSubscriptionService(newFakeSubs(), accounts)
	ctx := context.Background()

	resp, err := svc.CreateCheckout(ctx, "acc-1", "starter")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.PaymentURL)
	assert.NotEmpty(t, resp.OrderID)

	_, err = svc.CreateCheckout(ctx, "acc-1", "platinum")
	assert.True(t, domain.IsKind(err, domain.KindPlanNotFound))

	_, err = svc.CreateCheckout(ctx, "acc-1", "free")
	assert.Error(t, err, "free plan needs no checkout")
}

func TestChangePlanUpgradeTopsUpDelta(t *testing.T) {
	// Starter account with 200 of 1000 credits left, upgrading to
	// professional (5000): remaining becomes 200 + (5000-1000) = 4200.
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "starter", CreditsTotal: 1000, CreditsRemaining: 200, IsActive: true},
	}}
	sub := &domain.Subscription{ID: "sub-1", AccountID: "acc-1", PlanID: "starter", Status: domain.SubscriptionActive}
	svc, changer := newTestSubscriptionService(newFakeSubs(sub), accounts)

	updated, err := svc.ChangePlan(context.Background(), &domain.ChangePlanRequest{AccountID: "acc-1", PlanID: "professional"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.CreditsTotal)
	assert.Equal(t, int64(4200), updated.CreditsRemaining)
	assert.Equal(t, "professional", updated.PlanID)
	assert.Equal(t, 1, changer.calls)
	assert.Equal(t, "professional", sub.PlanID, "live subscription follows the account")
}

func TestChangePlanRejectsDowngradeBelowUsage(t *testing.T) {
	// 4800 of 5000 consumed; starter's 1000 can't cover that.
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "professional", CreditsTotal: 5000, CreditsRemaining: 200, IsActive: true},
	}}
	svc, changer := newTestSubscriptionService(newFakeSubs(), accounts)

	_, err := svc.ChangePlan(context.Background(), &domain.ChangePlanRequest{AccountID: "acc-1", PlanID: "starter"})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.Code)
	assert.Zero(t, changer.calls, "no ledger entry on a rejected downgrade")
}

func TestChangePlanValidation(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "starter", CreditsTotal: 1000, CreditsRemaining: 1000, IsActive: true},
	}}
	svc, _ := newTestSubscriptionService(newFakeSubs(), accounts)
	ctx := context.Background()

	_, err := svc.ChangePlan(ctx, &domain.ChangePlanRequest{AccountID: "acc-1", PlanID: "platinum"})
	assert.True(t, domain.IsKind(err, domain.KindPlanNotFound))

	_, err = svc.ChangePlan(ctx, &domain.ChangePlanRequest{AccountID: "nope", PlanID: "professional"})
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))

	_, err = svc.ChangePlan(ctx, &domain.ChangePlanRequest{AccountID: "acc-1", PlanID: "starter"})
	assert.Error(t, err, "already on this plan")
}

func TestActivateSwitchesPlans(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "starter", CreditsTotal: 1000, CreditsRemaining: 700, IsActive: true},
	}}
	old := &domain.Subscription{ID: "sub-1", AccountID: "acc-1", PlanID: "starter", Status: domain.SubscriptionActive}
	subs := newFakeSubs(old)
	svc, _ := newTestSubscriptionService(subs, accounts)
	ctx := context.Background()

	// Same plan again is a conflict.
	_, err := svc.Activate(ctx, "acc-1", "starter", "order-1")
	assert.Error(t, err)

	sub, err := svc.Activate(ctx, "acc-1", "professional", "order-2")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, "professional", sub.PlanID)
	assert.True(t, sub.CurrentPeriodEnd.After(time.Now()))

	assert.Equal(t, domain.SubscriptionCanceled, old.Status, "old subscription is ended, not reused")
	assert.Equal(t, int64(4700), accounts.accounts["acc-1"].CreditsRemaining)
}

func TestHandlePaymentWebhookIgnoresNonSuccess(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "free", IsActive: true},
	}}
	subs := newFakeSubs()
	svc, changer := newTestSubscriptionService(subs, accounts)

	err := svc.HandlePaymentWebhook(context.Background(), &domain.PaymentWebhookPayload{
		OrderID: "order-1", AccountID: "acc-1", PlanID: "starter", Status: payment.StatusFailed,
	})
	require.NoError(t, err)
	assert.Zero(t, changer.calls)
	assert.Empty(t, subs.subs)
}

func TestCancel(t *testing.T) {
	sub := &domain.Subscription{ID: "sub-1", AccountID: "acc-1", PlanID: "starter", Status: domain.SubscriptionActive, AutoRenew: true}
	subs := newFakeSubs(sub)
	svc, _ := newTestSubscriptionService(subs, &fakeAccounts{})
	ctx := context.Background()

	// Someone else's subscription.
	err := svc.Cancel(ctx, "sub-1", "acc-2", domain.RoleUser)
	assert.Error(t, err)

	err = svc.Cancel(ctx, "sub-1", "acc-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCanceled, sub.Status)
	assert.False(t, sub.AutoRenew)

	// Canceling twice violates the state machine.
	err = svc.Cancel(ctx, "sub-1", "acc-1", domain.RoleUser)
	assert.Error(t, err)

	// Admins may cancel on behalf of accounts.
	other := &domain.Subscription{ID: "sub-2", AccountID: "acc-3", PlanID: "starter", Status: domain.SubscriptionTrial}
	subs.subs["sub-2"] = other
	err = svc.Cancel(ctx, "sub-2", "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCanceled, other.Status)
}
