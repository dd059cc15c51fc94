package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsEntry represents an entry in the system_settings table.
type SettingsEntry struct {
	Key       string      `json:"key"`
	Data      interface{} `json:"data"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// SettingsRepository handles database operations for global system settings
// (maintenance mode, cached aggregates).
type SettingsRepository struct {
	db *pgxpool.Pool
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a settings entry by key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*SettingsEntry, error) {
	query := `SELECT key, data, updated_at FROM system_settings WHERE key = $1`
	row := r.db.QueryRow(ctx, query, key)

	var entry SettingsEntry
	err := row.Scan(&entry.Key, &entry.Data, &entry.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan system_settings entry: %w", err)
	}
	return &entry, nil
}

// Set inserts or updates a settings entry.
func (r *SettingsRepository) Set(ctx context.Context, key string, data interface{}) error {
	query := `
		INSERT INTO system_settings (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, key, data)
	if err != nil {
		return fmt.Errorf("failed to set system_settings entry: %w", err)
	}
	return nil
}
