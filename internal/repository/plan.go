package repository

import (
	"context"
	"fmt"

	"github.com/apimeter/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const planColumns = `id, name, price_cents, interval, credits_included,
	features, is_active, is_popular, created_at, updated_at`

// PlanRepository handles database operations for the plan catalog.
type PlanRepository struct {
	db *pgxpool.Pool
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var p domain.Plan
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Interval, &p.CreditsIncluded,
		&p.Features, &p.IsActive, &p.IsPopular, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return &p, nil
}

// Seed inserts the default plan catalog, skipping plans that already exist.
func (r *PlanRepository) Seed(ctx context.Context) error {
	for _, p := range domain.DefaultPlans() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO plans (id, name, price_cents, interval, credits_included, features, is_active, is_popular)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.PriceCents, p.Interval, p.CreditsIncluded, p.Features, p.IsActive, p.IsPopular)
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.ID, err)
		}
	}
	return nil
}

// List returns all plans; when activeOnly is set, deactivated plans are
// filtered out (the public catalog).
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY price_cents ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// FindByID returns a plan by ID.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// Create inserts a new plan.
func (r *PlanRepository) Create(ctx context.Context, p *domain.Plan) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO plans (id, name, price_cents, interval, credits_included, features, is_active, is_popular, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.Name, p.PriceCents, p.Interval, p.CreditsIncluded, p.Features, p.IsActive, p.IsPopular, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// Update persists mutable plan fields.
func (r *PlanRepository) Update(ctx context.Context, p *domain.Plan) error {
	_, err := r.db.Exec(ctx, `
		UPDATE plans
		SET name = $1, price_cents = $2, credits_included = $3, features = $4,
			is_active = $5, is_popular = $6, updated_at = NOW()
		WHERE id = $7
	`, p.Name, p.PriceCents, p.CreditsIncluded, p.Features, p.IsActive, p.IsPopular, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}
