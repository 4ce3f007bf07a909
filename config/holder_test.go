package config_test

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/config"
)

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig(100))

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if got := h.Get().Tiers[0].MonthlyFreeOperations.Regular; got != 100 {
		t.Errorf("initial allowance = %d, want 100", got)
	}

	if err := os.WriteFile(path, []byte(validConfig(250)), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	if got := h.Get().Tiers[0].MonthlyFreeOperations.Regular; got != 250 {
		t.Errorf("reloaded allowance = %d, want 250", got)
	}
}

func TestHolder_OnChangeAndOnReload(t *testing.T) {
	path := writeConfig(t, validConfig(100))

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var (
		mu       sync.Mutex
		received *config.Config
		results  []error
	)
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})
	h.OnReload(func(err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	})

	os.WriteFile(path, []byte(validConfig(42)), 0644)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	os.WriteFile(path, []byte("storage: {backend: floppy}"), 0644)
	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.Tiers[0].MonthlyFreeOperations.Regular != 42 {
		t.Errorf("OnChange received %+v", received)
	}
	if len(results) != 2 || results[0] != nil || results[1] == nil {
		t.Errorf("reload results = %v, want [nil, error]", results)
	}
	if h.Get().Tiers[0].MonthlyFreeOperations.Regular != 42 {
		t.Error("failed reload must keep the previous config")
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig(100))

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 10)
	h.OnChange(func(*config.Config) { changed <- struct{}{} })

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	if err := os.WriteFile(path, []byte(validConfig(7)), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	// A single write may surface as several events; wait for the last one.
	deadline := time.Now().Add(2 * time.Second)
	for h.Get().Tiers[0].MonthlyFreeOperations.Regular != 7 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.Get().Tiers[0].MonthlyFreeOperations.Regular; got != 7 {
		t.Errorf("after file watch, allowance = %d, want 7", got)
	}
}

func TestHolder_StopIsIdempotent(t *testing.T) {
	h, err := config.NewHolder(writeConfig(t, validConfig(1)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	h.WatchSignals()
	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig(100))

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()
}

func TestFieldLists(t *testing.T) {
	contains := func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	}
	for _, f := range []string{"tiers", "plans", "pricing"} {
		if !contains(config.ReloadableFields(), f) {
			t.Errorf("%s not in ReloadableFields", f)
		}
	}
	for _, f := range []string{"server", "storage"} {
		if !contains(config.NonReloadableFields(), f) {
			t.Errorf("%s not in NonReloadableFields", f)
		}
	}
}

// Helpers

func validConfig(freeRegular int) string {
	return `
storage:
  backend: memory
tiers:
  - id: free
    rank: 1
    policy: monthly_quota
    monthly_free_operations:
      regular: ` + strconv.Itoa(freeRegular) + `
      raw: 10
    file_size_ceiling_mb: {regular: 7, raw: 15}
    capabilities: [compress]
`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "microjpeg.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
