package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/ports"
)

// Every ledger entry is one hash. Scripts return the fields in this order:
// regular, raw, bytes, started, updated.
const (
	fieldRegular = "regular"
	fieldRaw     = "raw"
	fieldBytes   = "bytes"
	fieldStarted = "started"
	fieldUpdated = "updated"
)

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("HSET", KEYS[1], "regular", 0, "raw", 0, "bytes", 0, "started", ARGV[1], "updated", ARGV[1])
end
if tonumber(ARGV[2]) > 0 then redis.call("PEXPIRE", KEYS[1], ARGV[2]) end
return redis.call("HMGET", KEYS[1], "regular", "raw", "bytes", "started", "updated")
`

const incrementScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("HSET", KEYS[1], "regular", 0, "raw", 0, "bytes", 0, "started", ARGV[4])
end
redis.call("HINCRBY", KEYS[1], "regular", ARGV[1])
redis.call("HINCRBY", KEYS[1], "raw", ARGV[2])
redis.call("HINCRBY", KEYS[1], "bytes", ARGV[3])
redis.call("HSET", KEYS[1], "updated", ARGV[4])
if tonumber(ARGV[5]) > 0 then redis.call("PEXPIRE", KEYS[1], ARGV[5]) end
return redis.call("HMGET", KEYS[1], "regular", "raw", "bytes", "started", "updated")
`

// Returns 1 when reset, 0 when the start moved, -1 when missing.
const resetScript = `
local started = redis.call("HGET", KEYS[1], "started")
if not started then
  return -1
end
if started ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "regular", 0, "raw", 0, "bytes", 0, "started", ARGV[2], "updated", ARGV[2])
if tonumber(ARGV[3]) > 0 then redis.call("PEXPIRE", KEYS[1], ARGV[3]) end
return 1
`

// LedgerStore implements ports.LedgerStore on Redis hashes. Each mutation
// is one Lua script so it runs atomically on the server.
type LedgerStore struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration
	create    *goredis.Script
	increment *goredis.Script
	reset     *goredis.Script
}

// NewLedgerStore creates a Redis ledger store. With a positive retention
// keys expire after that long without writes; otherwise they never expire.
func NewLedgerStore(client *goredis.Client, prefix string, retention time.Duration) *LedgerStore {
	if retention < 0 {
		retention = 0
	}
	return &LedgerStore{
		client:    client,
		prefix:    prefixOrDefault(prefix),
		retention: retention,
		create:    goredis.NewScript(createScript),
		increment: goredis.NewScript(incrementScript),
		reset:     goredis.NewScript(resetScript),
	}
}

func (s *LedgerStore) redisKey(key ledger.Key) string {
	return s.prefix + ":ledger:" + key.String()
}

// Get returns the entry for key.
func (s *LedgerStore) Get(ctx context.Context, key ledger.Key) (ledger.Entry, error) {
	vals, err := s.client.HMGet(ctx, s.redisKey(key), fieldRegular, fieldRaw, fieldBytes, fieldStarted, fieldUpdated).Result()
	if err != nil {
		return ledger.Entry{}, err
	}
	if vals[3] == nil {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return entryFrom(key, vals), nil
}

// GetOrCreate returns the entry for key, creating it when absent.
func (s *LedgerStore) GetOrCreate(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error) {
	vals, err := s.create.Run(ctx, s.client, []string{s.redisKey(key)},
		now.UnixNano(), s.retention.Milliseconds()).Slice()
	if err != nil {
		return ledger.Entry{}, err
	}
	return entryFrom(key, vals), nil
}

// Increment atomically adds to the counters and returns the new entry.
func (s *LedgerStore) Increment(ctx context.Context, key ledger.Key, cat category.Category, amount, bytes int64, now time.Time) (ledger.Entry, error) {
	if amount < 0 {
		amount = 0
	}
	if bytes < 0 {
		bytes = 0
	}
	var regular, raw int64
	switch cat {
	case category.Regular:
		regular = amount
	case category.Raw:
		raw = amount
	}

	vals, err := s.increment.Run(ctx, s.client, []string{s.redisKey(key)},
		regular, raw, bytes, now.UnixNano(), s.retention.Milliseconds()).Slice()
	if err != nil {
		return ledger.Entry{}, err
	}
	return entryFrom(key, vals), nil
}

// ResetWindow zeroes the entry if its window start equals expectedStart.
func (s *LedgerStore) ResetWindow(ctx context.Context, key ledger.Key, expectedStart, newStart time.Time) (bool, error) {
	n, err := s.reset.Run(ctx, s.client, []string{s.redisKey(key)},
		expectedStart.UnixNano(), newStart.UnixNano(), s.retention.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	switch n {
	case 1:
		return true, nil
	case -1:
		return false, ledger.ErrNotFound
	default:
		return false, nil
	}
}

func entryFrom(key ledger.Key, vals []any) ledger.Entry {
	get := func(i int) int64 {
		if i >= len(vals) {
			return 0
		}
		return toInt64(vals[i])
	}
	return ledger.Entry{
		Key:                    key,
		RegularMonthlyCount:    get(0),
		RawMonthlyCount:        get(1),
		MonthlyBandwidthBytes:  get(2),
		MonthlyWindowStartedAt: fromNanos(get(3)),
		UpdatedAt:              fromNanos(get(4)),
	}
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
