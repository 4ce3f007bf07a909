package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce collapses the burst of events one editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Holder owns the live configuration and swaps it on reload. Listeners
// registered with OnChange receive every accepted configuration; a file
// that fails to load or validate is rejected and the previous one stays.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	onChange []func(*Config)
	observe  func(error)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads path and returns a holder for it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Holder{
		config: cfg,
		path:   abs,
		logger: logger.With().Str("component", "config").Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload re-reads the file. On error the current configuration is kept.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config rejected, keeping current")
		h.report(err)
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.config
	h.config = next
	listeners := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	logDiff(h.logger, prev, next)
	for _, fn := range listeners {
		fn(next)
	}
	h.report(nil)
	h.logger.Info().Str("path", h.path).Msg("config reloaded")
	return nil
}

func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnReload registers fn to observe the outcome of every reload attempt.
func (h *Holder) OnReload(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observe = fn
}

func (h *Holder) report(err error) {
	h.mu.RLock()
	fn := h.observe
	h.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// WatchFile reloads when the file changes. The parent directory is
// watched so rename-into-place saves are seen too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.path), err)
	}
	h.watcher = w
	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.logger.Info().Msg("SIGHUP received")
				h.Reload()
			case <-h.stopCh:
				return
			}
		}
	}()
}

func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	name := filepath.Base(h.path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file event")
			timer.Reset(reloadDebounce)

		case <-timer.C:
			h.Reload()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("config watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// logDiff reports what a reload changed. Server, storage and redis
// settings are read once at startup.
func logDiff(logger zerolog.Logger, prev, next *Config) {
	ev := logger.Info()
	if prev.Logging.Level != next.Logging.Level {
		ev = ev.Str("log_level", next.Logging.Level)
	}
	ev.Int("tiers", len(next.Tiers)).
		Int("plan_aliases", len(next.Plans.Aliases)).
		Int("bands", len(next.Pricing.Bands)).
		Int("bundles", len(next.Pricing.Bundles)).
		Int("admin_tokens", len(next.Admin.Tokens)).
		Msg("config applied")

	if prev.Storage != next.Storage || prev.Redis != next.Redis || prev.Server != next.Server {
		logger.Warn().Strs("fields", NonReloadableFields()).Msg("restart required for changed fields")
	}
}

// ReloadableFields lists the settings a reload applies to a running service.
func ReloadableFields() []string {
	return []string{"tiers", "plans", "pricing", "admin.tokens", "logging.level"}
}

// NonReloadableFields lists the settings that need a restart.
func NonReloadableFields() []string {
	return []string{"server", "storage", "redis", "settings.cache_ttl", "logging.format", "logging.file"}
}
