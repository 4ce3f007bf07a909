package redis_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/applelectricals/microjpeg/adapters/redis"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)

// setup connects to MICROJPEG_TEST_REDIS_ADDR and isolates the test under a
// random key prefix.
func setup(t *testing.T) (*redis.LedgerStore, *redis.RateLimitStore) {
	t.Helper()
	addr := os.Getenv("MICROJPEG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MICROJPEG_TEST_REDIS_ADDR not set")
	}
	client, err := redis.NewClient(context.Background(), redis.Options{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	prefix := "microjpeg-test-" + uuid.NewString()
	return redis.NewLedgerStore(client, prefix, time.Hour), redis.NewRateLimitStore(client, prefix)
}

func TestLedgerStore_Lifecycle(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	key := ledger.Key{Identity: ledger.User("u1"), SessionID: "s"}

	if _, err := store.Get(ctx, key); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}

	e, err := store.GetOrCreate(ctx, key, t0)
	if err != nil || !e.MonthlyWindowStartedAt.Equal(t0) {
		t.Fatalf("GetOrCreate = %+v, %v", e, err)
	}

	e, err = store.Increment(ctx, key, category.Raw, 2, 4096, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if e.RawMonthlyCount != 2 || e.MonthlyBandwidthBytes != 4096 || !e.MonthlyWindowStartedAt.Equal(t0) {
		t.Errorf("entry = %+v", e)
	}

	later := t0.Add(31 * 24 * time.Hour)
	if ok, err := store.ResetWindow(ctx, key, t0, later); err != nil || !ok {
		t.Fatalf("ResetWindow = %v, %v", ok, err)
	}
	if ok, _ := store.ResetWindow(ctx, key, t0, later); ok {
		t.Error("stale reset must not apply")
	}
	e, _ = store.Get(ctx, key)
	if e.RawMonthlyCount != 0 || !e.MonthlyWindowStartedAt.Equal(later) {
		t.Errorf("after reset = %+v", e)
	}
}

func TestLedgerStore_ConcurrentIncrements(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	key := ledger.Key{Identity: ledger.AnonymousSession("tok")}

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Increment(ctx, key, category.Regular, 1, 1, t0)
		}()
	}
	wg.Wait()

	e, err := store.Get(ctx, key)
	if err != nil || e.RegularMonthlyCount != n {
		t.Errorf("count = %d (%v), want %d", e.RegularMonthlyCount, err, n)
	}
}

func TestRateLimitStore_GetAndCheck(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()
	cfg := ratelimit.Config{Limit: 3, Window: time.Hour}
	now := time.Now()

	for i := 0; i < 3; i++ {
		if res, err := store.GetAndCheck(ctx, "user:u1", cfg, now); err != nil || !res.Allowed {
			t.Fatalf("request %d: %+v %v", i, res, err)
		}
	}
	res, err := store.GetAndCheck(ctx, "user:u1", cfg, now)
	if err != nil || res.Allowed {
		t.Fatalf("fourth request = %+v, %v", res, err)
	}

	state, _ := store.Get(ctx, "user:u1")
	if state.Count != 3 {
		t.Errorf("count = %d, want 3", state.Count)
	}
}

func TestLedgerStore_SeparatorsInIDsDoNotCollide(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	a := ledger.Key{Identity: ledger.User("alice|x")}
	b := ledger.Key{Identity: ledger.User("alice"), SessionID: "x|"}

	if _, err := store.Increment(ctx, a, category.Regular, 3, 0, t0); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	e, err := store.GetOrCreate(ctx, b, t0)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if e.RegularMonthlyCount != 0 {
		t.Errorf("second key sees %d operations of the first", e.RegularMonthlyCount)
	}
}
