package repository

import (
	"context"
	"fmt"

	"github.com/apimeter/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `id, account_id, plan_id, status, current_period_start,
	current_period_end, auto_renew, payment_provider_id, created_at, updated_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(&s.ID, &s.AccountID, &s.PlanID, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.AutoRenew,
		&s.PaymentProviderID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (id, account_id, plan_id, status, current_period_start,
			current_period_end, auto_renew, payment_provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sub.ID, sub.AccountID, sub.PlanID, sub.Status, sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.AutoRenew, sub.PaymentProviderID, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindLiveByAccountID returns the account's TRIAL or ACTIVE subscription, if
// any. At most one live subscription exists per account.
func (r *SubscriptionRepository) FindLiveByAccountID(ctx context.Context, accountID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE account_id = $1 AND status IN ('TRIAL', 'ACTIVE')
		ORDER BY created_at DESC LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, accountID))
}

// FindByID returns a subscription by ID.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// UpdateStatus transitions a subscription's status. autoRenew is forced off
// for terminal states.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id string, status domain.SubscriptionStatus, autoRenew bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET status = $1, auto_renew = $2, updated_at = NOW() WHERE id = $3
	`, status, autoRenew, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return nil
}

// UpdatePlan swaps the plan on a live subscription (admin plan change).
func (r *SubscriptionRepository) UpdatePlan(ctx context.Context, id, planID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET plan_id = $1, updated_at = NOW() WHERE id = $2
	`, planID, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription plan: %w", err)
	}
	return nil
}

// CountByStatus returns the number of subscriptions in the given status.
func (r *SubscriptionRepository) CountByStatus(ctx context.Context, status domain.SubscriptionStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}
