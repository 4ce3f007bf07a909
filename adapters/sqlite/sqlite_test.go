package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/applelectricals/microjpeg/adapters/sqlite"
	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/tier"
)

var (
	t0  = time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)
	key = ledger.Key{Identity: ledger.User("user-1"), SessionID: "s1"}
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "microjpeg-test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// -----------------------------------------------------------------------------
// Migrations
// -----------------------------------------------------------------------------

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlite.NewLedgerStore(db)
	if _, err := store.Increment(context.Background(), key, category.Regular, 1, 0, t0); err != nil {
		t.Fatalf("increment: %v", err)
	}
}

// -----------------------------------------------------------------------------
// LedgerStore Tests
// -----------------------------------------------------------------------------

func TestLedgerStore_GetMissing(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))

	if _, err := store.Get(context.Background(), key); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerStore_GetOrCreate(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	e, err := store.GetOrCreate(ctx, key, t0)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !e.MonthlyWindowStartedAt.Equal(t0) || e.Key != key {
		t.Errorf("entry = %+v", e)
	}

	again, err := store.GetOrCreate(ctx, key, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !again.MonthlyWindowStartedAt.Equal(t0) {
		t.Error("existing entry must keep its window")
	}
}

func TestLedgerStore_Increment(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := store.Increment(ctx, key, category.Regular, 1, 1000, t0); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	e, err := store.Increment(ctx, key, category.Raw, 3, 500, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}

	if e.RegularMonthlyCount != 1 || e.RawMonthlyCount != 3 || e.MonthlyBandwidthBytes != 1500 {
		t.Errorf("entry = %+v", e)
	}
	if !e.MonthlyWindowStartedAt.Equal(t0) {
		t.Errorf("window start = %v, want %v", e.MonthlyWindowStartedAt, t0)
	}
	if !e.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("updated at = %v", e.UpdatedAt)
	}
}

func TestLedgerStore_ConcurrentIncrements(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment(ctx, key, category.Regular, 1, 0, t0); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("increment errors: %v", errs[0])
	}
	e, _ := store.Get(ctx, key)
	if e.RegularMonthlyCount != n {
		t.Errorf("count = %d, want %d", e.RegularMonthlyCount, n)
	}
}

func TestLedgerStore_ResetWindow(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	store.Increment(ctx, key, category.Regular, 7, 99, t0)
	later := t0.Add(31 * 24 * time.Hour)

	ok, err := store.ResetWindow(ctx, key, t0, later)
	if err != nil || !ok {
		t.Fatalf("ResetWindow = %v, %v", ok, err)
	}
	ok, err = store.ResetWindow(ctx, key, t0, later.Add(time.Second))
	if err != nil || ok {
		t.Fatalf("stale ResetWindow = %v, %v; want false, nil", ok, err)
	}

	e, _ := store.Get(ctx, key)
	if e.RegularMonthlyCount != 0 || e.MonthlyBandwidthBytes != 0 || !e.MonthlyWindowStartedAt.Equal(later) {
		t.Errorf("entry = %+v", e)
	}

	other := ledger.Key{Identity: ledger.AnonymousSession("tok")}
	if _, err := store.ResetWindow(ctx, other, t0, later); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("missing key err = %v", err)
	}
}

func TestLedgerStore_CleanupStale(t *testing.T) {
	store := sqlite.NewLedgerStore(setupTestDB(t))
	ctx := context.Background()

	store.GetOrCreate(ctx, key, t0)
	n, err := store.CleanupStale(ctx, t0.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("CleanupStale = %d, %v", n, err)
	}
}

// -----------------------------------------------------------------------------
// AuditStore Tests
// -----------------------------------------------------------------------------

func TestAuditStore_AppendAndList(t *testing.T) {
	store := sqlite.NewAuditStore(setupTestDB(t))
	ctx := context.Background()
	u1 := ledger.User("u1")

	rec := audit.NewRecord("r1", audit.Input{
		Identity:            u1,
		SessionID:           "s1",
		TierID:              tier.Free,
		Operation:           "compress",
		Filename:            "a.nef",
		FileSizeBytes:       3 * tier.MB,
		PageContext:         "/compress-raw",
		Outcome:             audit.OutcomeProcessed,
		WasBypassed:         true,
		BypassReason:        "support",
		ActingAdministrator: "ops",
	}, t0)
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.Append(ctx, audit.Record{ID: "r2", Identity: ledger.User("u2"), Outcome: audit.OutcomeDenied, Timestamp: t0.Add(time.Minute)})

	got, err := store.List(ctx, audit.Filter{Identity: &u1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.OperationCategory != category.Raw || r.FileFormat != "nef" || !r.WasBypassed || r.ActingAdministrator != "ops" {
		t.Errorf("record = %+v", r)
	}
	if !r.Timestamp.Equal(t0) || r.FileSizeMB != 3 || r.TierID != tier.Free {
		t.Errorf("record = %+v", r)
	}

	all, _ := store.List(ctx, audit.Filter{})
	if len(all) != 2 || all[0].ID != "r2" {
		t.Errorf("newest first: %+v", all)
	}

	denied, _ := store.List(ctx, audit.Filter{Outcome: audit.OutcomeDenied, Since: t0.Add(time.Second)})
	if len(denied) != 1 || denied[0].ID != "r2" {
		t.Errorf("denied = %+v", denied)
	}

	bypassed, _ := store.List(ctx, audit.Filter{BypassedOnly: true, Limit: 1})
	if len(bypassed) != 1 || bypassed[0].ID != "r1" {
		t.Errorf("bypassed = %+v", bypassed)
	}
}

func TestAuditStore_DuplicateIDRejected(t *testing.T) {
	store := sqlite.NewAuditStore(setupTestDB(t))
	ctx := context.Background()

	r := audit.Record{ID: "dup", Identity: ledger.User("u"), Outcome: audit.OutcomeProcessed, Timestamp: t0}
	if err := store.Append(ctx, r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, r); err == nil {
		t.Error("records are immutable; duplicate insert must fail")
	}
}

// -----------------------------------------------------------------------------
// SettingsStore Tests
// -----------------------------------------------------------------------------

func TestSettingsStore_SetAndGetAll(t *testing.T) {
	store := sqlite.NewSettingsStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Set(ctx, "enforcement.enabled", "false", "ops"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "enforcement.enabled", "true", "ops2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || all["enforcement.enabled"] != "true" {
		t.Errorf("GetAll = %v", all)
	}
}
