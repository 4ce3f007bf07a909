package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/domain/admission"
	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/ports"
)

// DefaultSettingsTTL bounds how stale a cached settings read may be.
const DefaultSettingsTTL = 5 * time.Second

// SettingsService provides runtime settings with a bounded-staleness cache.
// Every admission decision reads its snapshot through here, so an
// enforcement toggle reaches all decisions within one TTL.
type SettingsService struct {
	store  ports.SettingsStore
	clock  ports.Clock
	logger zerolog.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	cache    settings.Settings
	loadedAt time.Time
}

// NewSettingsService creates a new settings service. A ttl of zero uses
// DefaultSettingsTTL; a negative ttl reads the store on every call.
func NewSettingsService(store ports.SettingsStore, clock ports.Clock, ttl time.Duration, logger zerolog.Logger) *SettingsService {
	if ttl == 0 {
		ttl = DefaultSettingsTTL
	}
	return &SettingsService{
		store:  store,
		clock:  clock,
		logger: logger,
		ttl:    ttl,
		cache:  settings.Defaults(),
	}
}

// Load loads all settings from the store and merges with defaults.
func (s *SettingsService) Load(ctx context.Context) error {
	loaded, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cache = settings.Merge(loaded)
	s.loadedAt = s.clock.Now()
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(loaded)).Msg("settings loaded")
	return nil
}

// Get returns the current settings, refreshing the cache when it is older
// than the TTL. A failed refresh keeps serving the last known values.
func (s *SettingsService) Get(ctx context.Context) settings.Settings {
	s.mu.RLock()
	fresh := s.ttl > 0 && !s.loadedAt.IsZero() && s.clock.Now().Sub(s.loadedAt) < s.ttl
	s.mu.RUnlock()

	if !fresh {
		if err := s.Load(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("settings refresh failed, using cached values")
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(settings.Settings, len(s.cache))
	for k, v := range s.cache {
		result[k] = v
	}
	return result
}

// Snapshot returns the settings view an admission decision is made against.
func (s *SettingsService) Snapshot(ctx context.Context) admission.Snapshot {
	return snapshotOf(s.Get(ctx))
}

func snapshotOf(cur settings.Settings) admission.Snapshot {
	return admission.Snapshot{
		EnforcementEnabled:       cur.GetBool(settings.KeyEnforcementEnabled),
		SizeCeilingsWhenDisabled: cur.GetBool(settings.KeySizeCeilingsWhenDisabled),
	}
}

// Set updates a setting in both store and cache.
func (s *SettingsService) Set(ctx context.Context, key, value, updatedBy string) error {
	if err := settings.Validate(key, value); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.store.Set(ctx, key, value, updatedBy); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	s.logger.Info().Str("key", key).Str("value", value).Str("updated_by", updatedBy).Msg("setting updated")
	return nil
}

// SetEnforcement switches global enforcement on or off.
func (s *SettingsService) SetEnforcement(ctx context.Context, enabled bool, updatedBy string) error {
	return s.Set(ctx, settings.KeyEnforcementEnabled, settings.FormatBool(enabled), updatedBy)
}
