package repository

import (
	"context"
	"fmt"

	"github.com/apimeter/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const endpointColumns = `id, name, path, method, is_active, credit_cost,
	rate_limit, rate_window_secs, allowed_plans, total_calls, error_count,
	total_latency_ms, created_at, updated_at`

// EndpointRepository handles database operations for the endpoint registry.
type EndpointRepository struct {
	db *pgxpool.Pool
}

// NewEndpointRepository creates a new EndpointRepository.
func NewEndpointRepository(db *pgxpool.Pool) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func scanEndpoint(row pgx.Row) (*domain.Endpoint, error) {
	var e domain.Endpoint
	err := row.Scan(&e.ID, &e.Name, &e.Path, &e.Method, &e.IsActive, &e.CreditCost,
		&e.RateLimit, &e.RateWindowSecs, &e.AllowedPlans, &e.TotalCalls, &e.ErrorCount,
		&e.TotalLatencyMs, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan endpoint: %w", err)
	}
	return &e, nil
}

// List returns all registered endpoints.
func (r *EndpointRepository) List(ctx context.Context) ([]*domain.Endpoint, error) {
	rows, err := r.db.Query(ctx, `SELECT `+endpointColumns+` FROM endpoints ORDER BY path, method`)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []*domain.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// FindByID returns an endpoint by ID.
func (r *EndpointRepository) FindByID(ctx context.Context, id string) (*domain.Endpoint, error) {
	return scanEndpoint(r.db.QueryRow(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE id = $1`, id))
}

// Create inserts a new endpoint.
func (r *EndpointRepository) Create(ctx context.Context, e *domain.Endpoint) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO endpoints (id, name, path, method, is_active, credit_cost,
			rate_limit, rate_window_secs, allowed_plans, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Name, e.Path, e.Method, e.IsActive, e.CreditCost,
		e.RateLimit, e.RateWindowSecs, e.AllowedPlans, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create endpoint: %w", err)
	}
	return nil
}

// Update persists mutable endpoint fields. Cost changes apply to future
// calls only; past ledger entries are never re-priced.
func (r *EndpointRepository) Update(ctx context.Context, e *domain.Endpoint) error {
	_, err := r.db.Exec(ctx, `
		UPDATE endpoints
		SET name = $1, is_active = $2, credit_cost = $3, rate_limit = $4,
			rate_window_secs = $5, allowed_plans = $6, updated_at = NOW()
		WHERE id = $7
	`, e.Name, e.IsActive, e.CreditCost, e.RateLimit, e.RateWindowSecs, e.AllowedPlans, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update endpoint: %w", err)
	}
	return nil
}

// Delete removes an endpoint from the registry. Ledger entries referencing it
// keep their endpoint_id for history.
func (r *EndpointRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	return nil
}

// RecordCall bumps the aggregate counters after a billed call.
func (r *EndpointRepository) RecordCall(ctx context.Context, id string, latencyMs int64, isError bool) error {
	errInc := 0
	if isError {
		errInc = 1
	}
	_, err := r.db.Exec(ctx, `
		UPDATE endpoints
		SET total_calls = total_calls + 1,
			error_count = error_count + $1,
			total_latency_ms = total_latency_ms + $2,
			updated_at = NOW()
		WHERE id = $3
	`, errInc, latencyMs, id)
	if err != nil {
		return fmt.Errorf("failed to record endpoint call: %w", err)
	}
	return nil
}
