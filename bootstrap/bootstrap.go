// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/adapters/clock"
	"github.com/applelectricals/microjpeg/adapters/hasher"
	apihttp "github.com/applelectricals/microjpeg/adapters/http"
	"github.com/applelectricals/microjpeg/adapters/idgen"
	"github.com/applelectricals/microjpeg/adapters/metrics"
	"github.com/applelectricals/microjpeg/app"
	"github.com/applelectricals/microjpeg/config"
	"github.com/applelectricals/microjpeg/domain/settings"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Stores     *Stores
	HTTPServer *http.Server
	Router     http.Handler
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	// Services
	Settings  *app.SettingsService
	Admission *app.AdmissionService
	Pricing   *app.PricingService
	Rates     *app.RateGate
	Auth      *apihttp.AdminAuth

	holder    *config.Holder
	logCloser io.Closer
	stopOnce  sync.Once
}

// Options configures application initialization.
type Options struct {
	// ConfigPath is the YAML file to load. When empty or missing the
	// configuration comes from defaults and MICROJPEG_* variables only.
	ConfigPath string
	// Watch enables hot reload on file change and SIGHUP.
	Watch   bool
	Version string
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, logCloser := NewLogger(cfg.Logging)
	logger.Info().Str("version", opts.Version).Msg("initializing microjpeg")

	a := &App{
		Logger:    logger,
		Config:    cfg,
		logCloser: logCloser,
	}

	a.Stores, err = OpenStores(context.Background(), cfg, logger)
	if err != nil {
		a.closeLog()
		return nil, fmt.Errorf("open stores: %w", err)
	}

	if err := a.initServices(cfg); err != nil {
		a.Shutdown()
		return nil, err
	}
	a.initHTTPServer(cfg, opts.Version)

	if opts.ConfigPath != "" {
		if _, statErr := os.Stat(opts.ConfigPath); statErr == nil {
			if err := a.initHolder(opts.ConfigPath, opts.Watch); err != nil {
				a.Shutdown()
				return nil, err
			}
		}
	}

	return a, nil
}

func (a *App) initServices(cfg *config.Config) error {
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	clk := clock.Real{}
	a.Settings = app.NewSettingsService(a.Stores.Settings, clk, cfg.Settings.CacheTTL, a.Logger)
	if err := a.Settings.Load(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to load settings, using defaults")
	}

	a.Admission = app.NewAdmissionService(app.AdmissionDeps{
		Ledger:   app.NewLedger(a.Stores.Ledger, a.Metrics, a.Logger),
		Settings: a.Settings,
		Audit:    a.Stores.Audit,
		Clock:    clk,
		IDGen:    idgen.ULID{},
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	}, catalog)
	a.Pricing = app.NewPricingService(schedule, a.Metrics)
	a.Rates = app.NewRateGate(a.Stores.RateLimit, clk, a.Metrics, a.Logger, func() int {
		return a.Settings.Get(context.Background()).GetInt(settings.KeyRateLimitBurstTokens, 0)
	})
	a.Auth = apihttp.NewAdminAuth(hasher.NewBcrypt(0), AdminTokens(cfg))

	a.Logger.Info().
		Int("tiers", len(catalog.Tiers())).
		Int("bands", len(schedule.Bands)).
		Int("admin_tokens", len(cfg.Admin.Tokens)).
		Msg("services initialized")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config, version string) {
	h := apihttp.NewHandler(apihttp.HandlerDeps{
		Admission: a.Admission,
		Pricing:   a.Pricing,
		Settings:  a.Settings,
		Rates:     a.Rates,
		Auth:      a.Auth,
		Clock:     clock.Real{},
		IDGen:     idgen.UUID{},
		Logger:    a.Logger,
	})

	rcfg := apihttp.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Version:        version,
		Health:         a.Stores,
	}
	if cfg.Metrics.Enabled {
		rcfg.Metrics = a.Metrics
		rcfg.MetricsPath = cfg.Metrics.Path
		rcfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}
	a.Router = apihttp.NewRouter(h, a.Logger, rcfg)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) initHolder(path string, watch bool) error {
	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		return err
	}
	a.holder = holder
	holder.OnChange(a.applyConfig)
	holder.OnReload(a.Metrics.ConfigReloaded)

	if !watch {
		return nil
	}
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP only")
	}
	holder.WatchSignals()
	return nil
}

// applyConfig swaps the reloadable parts of cfg into the running services.
// Definitions apply to decisions made after the swap.
func (a *App) applyConfig(cfg *config.Config) {
	if catalog, err := cfg.Catalog(); err == nil {
		a.Admission.UpdateCatalog(catalog)
	} else {
		a.Logger.Error().Err(err).Msg("reloaded tier catalog rejected")
	}
	if schedule, err := cfg.Schedule(); err == nil {
		a.Pricing.UpdateSchedule(schedule)
	} else {
		a.Logger.Error().Err(err).Msg("reloaded pricing schedule rejected")
	}
	a.Auth.SetTokens(AdminTokens(cfg))
	SetLogLevel(cfg.Logging.Level)
	a.Config = cfg
}

// Reload re-reads the configuration file. It fails when the application
// was started without one.
func (a *App) Reload() error {
	if a.holder == nil {
		return errors.New("no configuration file to reload")
	}
	return a.holder.Reload()
}

// AdminTokens converts configured admin tokens for the HTTP layer.
func AdminTokens(cfg *config.Config) []apihttp.AdminToken {
	out := make([]apihttp.AdminToken, 0, len(cfg.Admin.Tokens))
	for _, t := range cfg.Admin.Tokens {
		out = append(out, apihttp.AdminToken{Name: t.Name, Hash: []byte(t.TokenHash)})
	}
	return out
}

// Run starts the HTTP server and blocks until ctx is done, a termination
// signal arrives or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("context cancelled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. It is safe to call more
// than once.
func (a *App) Shutdown() error {
	a.stopOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	timeout := a.Config.Server.ShutdownTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	a.closeLog()
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}
