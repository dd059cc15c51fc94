package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/repository"
)

const maintenanceKey = "maintenance_mode"

// maintenanceCacheTTL bounds how stale the middleware's view of the flag can
// be; flipping the switch takes effect within this window.
const maintenanceCacheTTL = 10 * time.Second

// MaintenanceState is the stored maintenance-mode setting.
type MaintenanceState struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// SystemService owns global operational state (maintenance mode). The flag
// lives in system_settings and is cached briefly in memory because the
// maintenance gate reads it on every request.
type SystemService struct {
	settings *repository.SettingsRepository

	mu        sync.Mutex
	cached    MaintenanceState
	fetchedAt time.Time
}

// NewSystemService creates a new SystemService.
func NewSystemService(settings *repository.SettingsRepository) *SystemService {
	return &SystemService{settings: settings}
}

// Maintenance returns the current maintenance state, served from the
// short-lived cache when fresh.
func (s *SystemService) Maintenance(ctx context.Context) (MaintenanceState, error) {
	s.mu.Lock()
	if time.Since(s.fetchedAt) < maintenanceCacheTTL {
		state := s.cached
		s.mu.Unlock()
		return state, nil
	}
	s.mu.Unlock()

	entry, err := s.settings.Get(ctx, maintenanceKey)
	if err != nil {
		// Fail open: a settings read failure must not take the API down.
		log.Printf("[ERROR] failed to read maintenance mode: %v", err)
		return MaintenanceState{}, nil
	}

	var state MaintenanceState
	if entry != nil {
		if m, ok := entry.Data.(map[string]interface{}); ok {
			if enabled, ok := m["enabled"].(bool); ok {
				state.Enabled = enabled
			}
			if msg, ok := m["message"].(string); ok {
				state.Message = msg
			}
		}
	}

	s.mu.Lock()
	s.cached = state
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return state, nil
}

// SetMaintenance flips maintenance mode (super-admin only, gated in router).
func (s *SystemService) SetMaintenance(ctx context.Context, state MaintenanceState) error {
	if err := s.settings.Set(ctx, maintenanceKey, state); err != nil {
		return domain.ErrInternal("failed to set maintenance mode", err)
	}
	s.mu.Lock()
	s.cached = state
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	if state.Enabled {
		log.Printf("🛠  Maintenance mode ENABLED")
	} else {
		log.Printf("✅ Maintenance mode disabled")
	}
	return nil
}
