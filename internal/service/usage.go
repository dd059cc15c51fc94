package service

import (
	"context"
	"math"
	"time"

	"github.com/apimeter/backend/internal/domain"
)

// usageStore is the slice of the ledger repository the aggregator reads.
type usageStore interface {
	DailyTotals(ctx context.Context, accountID string, from time.Time) ([]domain.DailyUsagePoint, error)
	UsageByEndpoint(ctx context.Context, accountID string) ([]domain.EndpointUsage, error)
}

// keyCounter counts active API keys for the dashboard.
type keyCounter interface {
	CountActive(ctx context.Context, accountID string) (int64, error)
}

const (
	defaultUsageRangeDays = 30
	maxUsageRangeDays     = 365
)

// UsageService rolls ledger entries up into time-bucketed and
// endpoint-bucketed statistics for dashboards.
type UsageService struct {
	usage    usageStore
	accounts accountGetter
	keys     keyCounter
}

// NewUsageService creates a new UsageService. keys may be nil when the
// dashboard is not wired.
func NewUsageService(usage usageStore, accounts accountGetter, keys keyCounter) *UsageService {
	return &UsageService{usage: usage, accounts: accounts, keys: keys}
}

// DailyUsage returns one point per calendar day (UTC) over the range, oldest
// first. Days without activity carry zeros so charts have no gaps.
func (s *UsageService) DailyUsage(ctx context.Context, accountID string, rangeDays int) ([]domain.DailyUsagePoint, error) {
	if rangeDays <= 0 {
		rangeDays = defaultUsageRangeDays
	}
	if rangeDays > maxUsageRangeDays {
		rangeDays = maxUsageRangeDays
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(rangeDays - 1))

	sparse, err := s.usage.DailyTotals(ctx, accountID, start)
	if err != nil {
		return nil, domain.ErrInternal("failed to aggregate daily usage", err)
	}

	byDate := make(map[string]domain.DailyUsagePoint, len(sparse))
	for _, p := range sparse {
		byDate[p.Date] = p
	}

	points := make([]domain.DailyUsagePoint, 0, rangeDays)
	for d := 0; d < rangeDays; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		if p, ok := byDate[date]; ok {
			points = append(points, p)
		} else {
			points = append(points, domain.DailyUsagePoint{Date: date})
		}
	}
	return points, nil
}

// UsageByEndpoint returns per-endpoint rollups with percentage of total
// credits. Percentages sum to 100 (within rounding); when no credits were
// consumed every percentage is 0, never NaN or Inf.
func (s *UsageService) UsageByEndpoint(ctx context.Context, accountID string) ([]domain.EndpointUsage, error) {
	usage, err := s.usage.UsageByEndpoint(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to aggregate endpoint usage", err)
	}

	var total int64
	for _, u := range usage {
		total += u.Credits
	}
	for i := range usage {
		if total > 0 {
			pct := float64(usage[i].Credits) / float64(total) * 100
			usage[i].PercentageOfTotal = math.Round(pct*100) / 100
		} else {
			usage[i].PercentageOfTotal = 0
		}
	}
	return usage, nil
}

// DashboardStats are the headline numbers for the signed-in account.
type DashboardStats struct {
	PlanID            string `json:"planId"`
	CreditsRemaining  int64  `json:"creditsRemaining"`
	CreditsTotal      int64  `json:"creditsTotal"`
	CreditsUsed       int64  `json:"creditsUsed"`
	RequestsThisMonth int64  `json:"requestsThisMonth"`
	ActiveAPIKeys     int64  `json:"activeApiKeys"`
}

// Stats computes dashboard statistics for an account.
func (s *UsageService) Stats(ctx context.Context, accountID string) (*DashboardStats, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}

	stats := &DashboardStats{
		PlanID:           account.PlanID,
		CreditsRemaining: account.CreditsRemaining,
		CreditsTotal:     account.CreditsTotal,
	}
	if used := account.CreditsTotal - account.CreditsRemaining; used > 0 {
		stats.CreditsUsed = used
	}

	daily, err := s.DailyUsage(ctx, accountID, defaultUsageRangeDays)
	if err != nil {
		return nil, err
	}
	for _, p := range daily {
		stats.RequestsThisMonth += p.RequestCount
	}

	if s.keys != nil {
		n, err := s.keys.CountActive(ctx, accountID)
		if err != nil {
			return nil, domain.ErrInternal("failed to count api keys", err)
		}
		stats.ActiveAPIKeys = n
	}
	return stats, nil
}
