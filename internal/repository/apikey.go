package repository

import (
	"context"
	"fmt"

	"github.com/apimeter/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const apiKeyColumns = `id, account_id, name, prefix, last4, encrypted_secret,
	is_active, created_at, last_used_at`

// APIKeyRepository handles database operations for API keys.
type APIKeyRepository struct {
	db *pgxpool.Pool
}

// NewAPIKeyRepository creates a new APIKeyRepository.
func NewAPIKeyRepository(db *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.AccountID, &k.Name, &k.Prefix, &k.Last4,
		&k.EncryptedSecret, &k.IsActive, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}
	return &k, nil
}

// Create inserts a new API key.
func (r *APIKeyRepository) Create(ctx context.Context, k *domain.APIKey) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO api_keys (id, account_id, name, prefix, last4, encrypted_secret, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, k.ID, k.AccountID, k.Name, k.Prefix, k.Last4, k.EncryptedSecret, k.IsActive, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ListByAccount returns an account's keys, newest first.
func (r *APIKeyRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.APIKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// FindByID returns a key scoped to an account (owners can only touch their own keys).
func (r *APIKeyRepository) FindByID(ctx context.Context, id, accountID string) (*domain.APIKey, error) {
	return scanAPIKey(r.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND account_id = $2`, id, accountID))
}

// Update persists name and active-flag changes.
func (r *APIKeyRepository) Update(ctx context.Context, k *domain.APIKey) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET name = $1, is_active = $2 WHERE id = $3`, k.Name, k.IsActive, k.ID)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	return nil
}

// Delete revokes a key permanently.
func (r *APIKeyRepository) Delete(ctx context.Context, id, accountID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// CountActive returns the number of active keys for an account.
func (r *APIKeyRepository) CountActive(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE account_id = $1 AND is_active`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count api keys: %w", err)
	}
	return n, nil
}
