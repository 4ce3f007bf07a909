package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/ports"
)

// rateLimitShard is a single shard of the rate limit store.
type rateLimitShard struct {
	mu    sync.Mutex
	state map[string]ratelimit.WindowState
}

// RateLimitStore is a sharded in-memory store for hourly windows.
type RateLimitStore struct {
	shards    []*rateLimitShard
	numShards int
	cleanup   *time.Ticker
	done      chan struct{}
}

// RateLimitConfig configures the rate limit store.
type RateLimitConfig struct {
	NumShards       int           // Number of shards (default: 32)
	CleanupInterval time.Duration // How often to drop closed windows (default: 10m)
}

// NewRateLimitStore creates a new sharded in-memory rate limit store.
func NewRateLimitStore(cfg RateLimitConfig) *RateLimitStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	s := &RateLimitStore{
		shards:    make([]*rateLimitShard, cfg.NumShards),
		numShards: cfg.NumShards,
		done:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &rateLimitShard{state: make(map[string]ratelimit.WindowState)}
	}

	s.cleanup = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

func (s *RateLimitStore) getShard(key string) *rateLimitShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Get retrieves current window state for a key.
func (s *RateLimitStore) Get(ctx context.Context, key string) (ratelimit.WindowState, error) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.state[key], nil
}

// Set updates window state for a key.
func (s *RateLimitStore) Set(ctx context.Context, key string, state ratelimit.WindowState) error {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.state[key] = state
	return nil
}

// GetAndCheck gets state, checks the ceiling and stores the result under
// one lock.
func (s *RateLimitStore) GetAndCheck(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.CheckResult, error) {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	result, next := ratelimit.Check(shard.state[key], cfg, now)
	shard.state[key] = next
	return result, nil
}

func (s *RateLimitStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanup.C:
			s.doCleanup(time.Now())
		case <-s.done:
			return
		}
	}
}

func (s *RateLimitStore) doCleanup(now time.Time) {
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, state := range shard.state {
			if !state.WindowEnd.IsZero() && state.WindowEnd.Before(now) {
				delete(shard.state, key)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (s *RateLimitStore) Close() error {
	close(s.done)
	s.cleanup.Stop()
	return nil
}

// Len returns the total number of entries across all shards (for testing).
func (s *RateLimitStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.state)
		shard.mu.Unlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
