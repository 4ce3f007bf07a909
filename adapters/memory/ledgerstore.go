package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/ports"
)

// ledgerShard is a single shard of the ledger store.
type ledgerShard struct {
	mu      sync.RWMutex
	entries map[ledger.Key]ledger.Entry
}

// LedgerStore is a sharded in-memory implementation of ports.LedgerStore.
// Every mutation holds the shard lock, which makes Increment and
// ResetWindow atomic per key.
type LedgerStore struct {
	shards    []*ledgerShard
	numShards int
	cleanup   *time.Ticker
	done      chan struct{}
	now       func() time.Time
}

// LedgerStoreConfig configures the ledger store.
type LedgerStoreConfig struct {
	NumShards       int           // Number of shards (default: 32)
	CleanupInterval time.Duration // How often to drop stale entries (default: 1h)
	// Retention drops entries whose window started longer ago than this.
	// Zero keeps every entry; counters are then only reset in place.
	Retention time.Duration
	Now       func() time.Time
}

// NewLedgerStore creates a new sharded in-memory ledger store.
func NewLedgerStore(cfg LedgerStoreConfig) *LedgerStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &LedgerStore{
		shards:    make([]*ledgerShard, cfg.NumShards),
		numShards: cfg.NumShards,
		done:      make(chan struct{}),
		now:       cfg.Now,
	}
	for i := range s.shards {
		s.shards[i] = &ledgerShard{entries: make(map[ledger.Key]ledger.Entry)}
	}

	if cfg.Retention > 0 {
		s.cleanup = time.NewTicker(cfg.CleanupInterval)
		go s.cleanupLoop(cfg.Retention)
	}

	return s
}

// getShard returns the shard for a key using consistent hashing.
func (s *LedgerStore) getShard(key ledger.Key) *ledgerShard {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Get returns the entry for key.
func (s *LedgerStore) Get(ctx context.Context, key ledger.Key) (ledger.Entry, error) {
	shard := s.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	e, ok := shard.entries[key]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

// GetOrCreate returns the entry for key, creating it when absent.
func (s *LedgerStore) GetOrCreate(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error) {
	shard := s.getShard(key)

	shard.mu.RLock()
	e, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		return e, nil
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if e, ok := shard.entries[key]; ok {
		return e, nil
	}
	e = ledger.New(key, now)
	shard.entries[key] = e
	return e, nil
}

// Increment atomically adds to the counters and returns the new entry.
func (s *LedgerStore) Increment(ctx context.Context, key ledger.Key, cat category.Category, amount, bytes int64, now time.Time) (ledger.Entry, error) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok {
		e = ledger.New(key, now)
	}
	e = ledger.Apply(e, cat, amount, bytes, now)
	shard.entries[key] = e
	return e, nil
}

// ResetWindow zeroes the entry if its window start equals expectedStart.
func (s *LedgerStore) ResetWindow(ctx context.Context, key ledger.Key, expectedStart, newStart time.Time) (bool, error) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok {
		return false, ledger.ErrNotFound
	}
	if !e.MonthlyWindowStartedAt.Equal(expectedStart) {
		return false, nil
	}
	shard.entries[key] = ledger.New(key, newStart)
	return true, nil
}

// cleanupLoop periodically removes stale entries.
func (s *LedgerStore) cleanupLoop(retention time.Duration) {
	for {
		select {
		case <-s.cleanup.C:
			s.doCleanup(retention)
		case <-s.done:
			return
		}
	}
}

func (s *LedgerStore) doCleanup(retention time.Duration) {
	cutoff := s.now().Add(-retention)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for k, e := range shard.entries {
			if e.MonthlyWindowStartedAt.Before(cutoff) {
				delete(shard.entries, k)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (s *LedgerStore) Close() error {
	close(s.done)
	if s.cleanup != nil {
		s.cleanup.Stop()
	}
	return nil
}

// Len returns the total number of entries across all shards (for testing).
func (s *LedgerStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
