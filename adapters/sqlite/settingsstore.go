package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/ports"
)

// SettingsStore keeps runtime settings such as the enforcement switch.
// Rows hold only overrides; defaults are merged by the caller.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := settings.Settings{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set upserts key and records who changed it.
func (s *SettingsStore) Set(ctx context.Context, key, value, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_by, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value, updated_by = excluded.updated_by, updated_at = excluded.updated_at
	`, key, value, updatedBy, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
