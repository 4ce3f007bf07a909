package memory

import (
	"context"
	"sync"

	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/ports"
)

// SettingsStore is an in-memory implementation of ports.SettingsStore.
type SettingsStore struct {
	mu     sync.RWMutex
	values settings.Settings
	// Err, when set, is returned by every call (for testing).
	Err error
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{values: settings.Settings{}}
}

// GetAll returns a copy of all settings.
func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(settings.Settings, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// Set stores a value.
func (s *SettingsStore) Set(ctx context.Context, key, value, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.values[key] = value
	return nil
}

// Ensure interface compliance.
var _ ports.SettingsStore = (*SettingsStore)(nil)
