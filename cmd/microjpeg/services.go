package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/adapters/clock"
	"github.com/applelectricals/microjpeg/adapters/idgen"
	"github.com/applelectricals/microjpeg/adapters/metrics"
	"github.com/applelectricals/microjpeg/app"
	"github.com/applelectricals/microjpeg/bootstrap"
	"github.com/applelectricals/microjpeg/config"
)

// services is the offline view of a deployment's stores used by the
// inspection commands. It never starts the HTTP server.
type services struct {
	cfg       *config.Config
	stores    *bootstrap.Stores
	admission *app.AdmissionService
	settings  *app.SettingsService
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func pricingService() (*app.PricingService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}
	return app.NewPricingService(schedule, metrics.Nop{}), nil
}

func openServices(ctx context.Context) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Backend == "memory" {
		return nil, fmt.Errorf("storage backend %q keeps no state outside the server process", cfg.Storage.Backend)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	nop := zerolog.Nop()
	stores, err := bootstrap.OpenStores(ctx, cfg, nop)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// A negative TTL reads the store on every call.
	st := app.NewSettingsService(stores.Settings, clock.Real{}, -1, nop)
	adm := app.NewAdmissionService(app.AdmissionDeps{
		Ledger:   app.NewLedger(stores.Ledger, metrics.Nop{}, nop),
		Settings: st,
		Audit:    stores.Audit,
		Clock:    clock.Real{},
		IDGen:    idgen.ULID{},
		Metrics:  metrics.Nop{},
		Logger:   nop,
	}, catalog)

	return &services{cfg: cfg, stores: stores, admission: adm, settings: st}, nil
}

func (s *services) Close() error {
	return s.stores.Close()
}
