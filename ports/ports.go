// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/domain/settings"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides token hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// LedgerStore persists usage ledger entries.
//
// Increment must be a single atomic add on the backend: N concurrent calls
// for the same key raise the counter by exactly N. ResetWindow is a
// compare-and-set on the window start so that concurrent rollovers zero the
// counters once.
type LedgerStore interface {
	// Get returns the entry for key, or ledger.ErrNotFound.
	Get(ctx context.Context, key ledger.Key) (ledger.Entry, error)

	// GetOrCreate returns the entry for key, creating a zeroed one whose
	// window starts at now when absent.
	GetOrCreate(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error)

	// Increment atomically adds amount to the category counter and bytes
	// to bandwidth, creating the entry if needed, and returns the result.
	Increment(ctx context.Context, key ledger.Key, cat category.Category, amount, bytes int64, now time.Time) (ledger.Entry, error)

	// ResetWindow zeroes the counters and sets the window start to newStart
	// only if the stored start still equals expectedStart. It reports
	// whether this call performed the reset.
	ResetWindow(ctx context.Context, key ledger.Key, expectedStart, newStart time.Time) (bool, error)
}

// AuditSink persists audit records. Records are never updated.
type AuditSink interface {
	// Append stores a record.
	Append(ctx context.Context, r audit.Record) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, f audit.Filter) ([]audit.Record, error)
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	// GetAll retrieves all settings as a map.
	GetAll(ctx context.Context) (settings.Settings, error)

	// Set stores a setting value.
	Set(ctx context.Context, key, value, updatedBy string) error
}

// RateLimitStore persists hourly window state.
type RateLimitStore interface {
	// Get retrieves current window state for a key.
	Get(ctx context.Context, key string) (ratelimit.WindowState, error)

	// Set updates window state for a key.
	Set(ctx context.Context, key string, state ratelimit.WindowState) error
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Metrics records admission and usage metrics.
type Metrics interface {
	AdmissionDecided(tierID, reason string, allowed, bypassed bool, latency time.Duration)
	OperationRecorded(tierID, cat string, bytes int64)
	WindowRolledOver()
	CostPreviewed(kind string)
	LedgerError(op string)
	AuditError()
	RateLimited(tierID string)
}
