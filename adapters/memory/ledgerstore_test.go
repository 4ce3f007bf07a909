package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/applelectricals/microjpeg/adapters/memory"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
)

var (
	t0  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	key = ledger.Key{Identity: ledger.User("user1"), SessionID: "s1"}
)

func TestLedgerStore_GetMissing(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()

	if _, err := store.Get(context.Background(), key); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerStore_GetOrCreate(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()
	ctx := context.Background()

	e, err := store.GetOrCreate(ctx, key, t0)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !e.MonthlyWindowStartedAt.Equal(t0) || e.RegularMonthlyCount != 0 {
		t.Errorf("unexpected new entry: %+v", e)
	}

	again, _ := store.GetOrCreate(ctx, key, t0.Add(time.Hour))
	if !again.MonthlyWindowStartedAt.Equal(t0) {
		t.Error("existing entry must not be recreated")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestLedgerStore_Increment(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Increment(ctx, key, category.Regular, 1, 2048, t0); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	e, err := store.Increment(ctx, key, category.Raw, 2, 100, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	if e.RegularMonthlyCount != 1 || e.RawMonthlyCount != 2 || e.MonthlyBandwidthBytes != 2148 {
		t.Errorf("entry = %+v", e)
	}
	if !e.MonthlyWindowStartedAt.Equal(t0) {
		t.Error("window start must come from the first increment")
	}
}

func TestLedgerStore_ConcurrentIncrements(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{NumShards: 4})
	defer store.Close()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Increment(ctx, key, category.Regular, 1, 10, t0)
		}()
	}
	wg.Wait()

	e, _ := store.Get(ctx, key)
	if e.RegularMonthlyCount != n || e.MonthlyBandwidthBytes != n*10 {
		t.Errorf("count = %d bytes = %d, want %d and %d", e.RegularMonthlyCount, e.MonthlyBandwidthBytes, n, n*10)
	}
}

func TestLedgerStore_ResetWindow(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()
	ctx := context.Background()

	store.Increment(ctx, key, category.Regular, 5, 0, t0)
	later := t0.Add(31 * 24 * time.Hour)

	ok, err := store.ResetWindow(ctx, key, t0, later)
	if err != nil || !ok {
		t.Fatalf("ResetWindow = %v, %v; want true", ok, err)
	}
	ok, _ = store.ResetWindow(ctx, key, t0, later.Add(time.Second))
	if ok {
		t.Error("second reset with stale start must not apply")
	}

	e, _ := store.Get(ctx, key)
	if e.RegularMonthlyCount != 0 || !e.MonthlyWindowStartedAt.Equal(later) {
		t.Errorf("entry after reset = %+v", e)
	}
}

func TestLedgerStore_ConcurrentResetOnlyOnce(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()
	ctx := context.Background()
	store.Increment(ctx, key, category.Regular, 5, 0, t0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, _ := store.ResetWindow(ctx, key, t0, t0.Add(31*24*time.Hour+time.Duration(i)))
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("resets applied = %d, want 1", wins)
	}
}

func TestLedgerStore_ResetMissing(t *testing.T) {
	store := memory.NewLedgerStore(memory.LedgerStoreConfig{})
	defer store.Close()

	if _, err := store.ResetWindow(context.Background(), key, t0, t0); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerStore_RetentionIsOptIn(t *testing.T) {
	later := func() time.Time { return t0.Add(4 * ledger.WindowLength) }
	ctx := context.Background()

	kept := memory.NewLedgerStore(memory.LedgerStoreConfig{CleanupInterval: 5 * time.Millisecond, Now: later})
	defer kept.Close()
	dropped := memory.NewLedgerStore(memory.LedgerStoreConfig{
		CleanupInterval: 5 * time.Millisecond,
		Retention:       2 * ledger.WindowLength,
		Now:             later,
	})
	defer dropped.Close()

	for _, s := range []*memory.LedgerStore{kept, dropped} {
		if _, err := s.GetOrCreate(ctx, key, t0); err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := dropped.Get(ctx, key); errors.Is(err, ledger.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("entry past retention was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := kept.Get(ctx, key); err != nil {
		t.Errorf("entry without retention must be kept: %v", err)
	}
}
