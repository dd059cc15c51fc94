package service

import (
	"context"
	"testing"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsageStore struct {
	daily      []domain.DailyUsagePoint
	byEndpoint []domain.EndpointUsage
}

func (f *fakeUsageStore) DailyTotals(ctx context.Context, accountID string, from time.Time) ([]domain.DailyUsagePoint, error) {
	return f.daily, nil
}

func (f *fakeUsageStore) UsageByEndpoint(ctx context.Context, accountID string) ([]domain.EndpointUsage, error) {
	return f.byEndpoint, nil
}

type fakeKeyCounter struct{ n int64 }

func (f *fakeKeyCounter) CountActive(ctx context.Context, accountID string) (int64, error) {
	return f.n, nil
}

func day(offset int) string {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, offset).Format("2006-01-02")
}

func TestDailyUsageFillsGaps(t *testing.T) {
	store := &fakeUsageStore{daily: []domain.DailyUsagePoint{
		{Date: day(-5), CreditsConsumed: 40, RequestCount: 4},
		{Date: day(0), CreditsConsumed: 10, RequestCount: 1},
	}}
	svc := NewUsageService(store, &fakeAccounts{}, nil)

	points, err := svc.DailyUsage(context.Background(), "acc-1", 7)
	require.NoError(t, err)
	require.Len(t, points, 7)

	// Oldest first, contiguous dates.
	assert.Equal(t, day(-6), points[0].Date)
	assert.Equal(t, day(0), points[6].Date)

	assert.Equal(t, int64(40), points[1].CreditsConsumed)
	assert.Equal(t, int64(10), points[6].CreditsConsumed)

	// Every other day is present with zeros, not missing.
	for _, i := range []int{0, 2, 3, 4, 5} {
		assert.Zero(t, points[i].CreditsConsumed, "day %s", points[i].Date)
		assert.Zero(t, points[i].RequestCount, "day %s", points[i].Date)
	}
}

func TestDailyUsageClampsRange(t *testing.T) {
	svc := NewUsageService(&fakeUsageStore{}, &fakeAccounts{}, nil)
	ctx := context.Background()

	points, err := svc.DailyUsage(ctx, "acc-1", 0)
	require.NoError(t, err)
	assert.Len(t, points, defaultUsageRangeDays)

	points, err = svc.DailyUsage(ctx, "acc-1", 100000)
	require.NoError(t, err)
	assert.Len(t, points, maxUsageRangeDays)
}

func TestUsageByEndpointPercentages(t *testing.T) {
	store := &fakeUsageStore{byEndpoint: []domain.EndpointUsage{
		{Endpoint: "search", Credits: 75, Requests: 75},
		{Endpoint: "geocode", Credits: 25, Requests: 5},
	}}
	svc := NewUsageService(store, &fakeAccounts{}, nil)

	usage, err := svc.UsageByEndpoint(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.InDelta(t, 75.0, usage[0].PercentageOfTotal, 1e-9)
	assert.InDelta(t, 25.0, usage[1].PercentageOfTotal, 1e-9)

	var sum float64
	for _, u := range usage {
		sum += u.PercentageOfTotal
	}
	assert.InDelta(t, 100.0, sum, 0.01)
}

func TestUsageByEndpointZeroTotal(t *testing.T) {
	store := &fakeUsageStore{byEndpoint: []domain.EndpointUsage{
		{Endpoint: "search", Credits: 0, Requests: 3},
	}}
	svc := NewUsageService(store, &fakeAccounts{}, nil)

	usage, err := svc.UsageByEndpoint(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 0.0, usage[0].PercentageOfTotal, "no NaN when nothing was consumed")
}

func TestStats(t *testing.T) {
	store := &fakeUsageStore{daily: []domain.DailyUsagePoint{
		{Date: day(-1), CreditsConsumed: 30, RequestCount: 12},
		{Date: day(0), CreditsConsumed: 5, RequestCount: 3},
	}}
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", PlanID: "starter", CreditsTotal: 1000, CreditsRemaining: 965, IsActive: true},
	}}
	svc := NewUsageService(store, accounts, &fakeKeyCounter{n: 2})

	stats, err := svc.Stats(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "starter", stats.PlanID)
	assert.Equal(t, int64(965), stats.CreditsRemaining)
	assert.Equal(t, int64(35), stats.CreditsUsed)
	assert.Equal(t, int64(15), stats.RequestsThisMonth)
	assert.Equal(t, int64(2), stats.ActiveAPIKeys)
}

func TestStatsUnknownAccount(t *testing.T) {
	svc := NewUsageService(&fakeUsageStore{}, &fakeAccounts{}, nil)

	_, err := svc.Stats(context.Background(), "nope")
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))
}
