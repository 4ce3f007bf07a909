package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/ports"
)

// RateLimitStore keeps hourly windows in Redis so every node shares one
// ceiling per caller.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
}

// NewRateLimitStore creates a Redis rate limit store.
func NewRateLimitStore(client *goredis.Client, prefix string) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: prefixOrDefault(prefix)}
}

func (s *RateLimitStore) redisKey(key string) string {
	return s.prefix + ":rate:" + key
}

type hashGetter interface {
	HMGet(ctx context.Context, key string, fields ...string) *goredis.SliceCmd
}

// Get retrieves current window state for a key.
func (s *RateLimitStore) Get(ctx context.Context, key string) (ratelimit.WindowState, error) {
	return s.get(ctx, s.client, s.redisKey(key))
}

func (s *RateLimitStore) get(ctx context.Context, c hashGetter, rk string) (ratelimit.WindowState, error) {
	vals, err := c.HMGet(ctx, rk, "count", "end", "burst").Result()
	if err != nil {
		return ratelimit.WindowState{}, err
	}
	return ratelimit.WindowState{
		Count:     int(toInt64(vals[0])),
		WindowEnd: fromNanos(toInt64(vals[1])),
		BurstUsed: int(toInt64(vals[2])),
	}, nil
}

// Set updates window state for a key.
func (s *RateLimitStore) Set(ctx context.Context, key string, state ratelimit.WindowState) error {
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		s.set(ctx, p, s.redisKey(key), state)
		return nil
	})
	return err
}

func (s *RateLimitStore) set(ctx context.Context, p goredis.Pipeliner, rk string, state ratelimit.WindowState) {
	var end int64
	if !state.WindowEnd.IsZero() {
		end = state.WindowEnd.UnixNano()
	}
	p.HSet(ctx, rk, "count", state.Count, "end", end, "burst", state.BurstUsed)
	if !state.WindowEnd.IsZero() {
		p.PExpireAt(ctx, rk, state.WindowEnd.Add(time.Minute))
	}
}

// GetAndCheck runs the window check under WATCH so concurrent nodes never
// both spend the last slot.
func (s *RateLimitStore) GetAndCheck(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.CheckResult, error) {
	rk := s.redisKey(key)
	var result ratelimit.CheckResult

	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			state, err := s.get(ctx, tx, rk)
			if err != nil {
				return err
			}
			var next ratelimit.WindowState
			result, next = ratelimit.Check(state, cfg, now)
			if next == state {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				s.set(ctx, p, rk, next)
				return nil
			})
			return err
		}, rk)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return result, err
	}
	return result, goredis.TxFailedErr
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
