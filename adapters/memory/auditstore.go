package memory

import (
	"context"
	"sync"

	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/ports"
)

// AuditStore is an append-only in-memory implementation of ports.AuditSink.
type AuditStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append stores a record.
func (s *AuditStore) Append(ctx context.Context, r audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// List returns matching records, newest first.
func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.EffectiveLimit()
	out := make([]audit.Record, 0)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.Matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// Len returns the number of stored records (for testing).
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.AuditSink = (*AuditStore)(nil)
