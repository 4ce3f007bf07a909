package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/adapters/memory"
	"github.com/applelectricals/microjpeg/adapters/redis"
	"github.com/applelectricals/microjpeg/adapters/sqlite"
	"github.com/applelectricals/microjpeg/config"
	"github.com/applelectricals/microjpeg/ports"
)

// Stores groups the storage ports for one backend choice.
type Stores struct {
	Ledger    ports.LedgerStore
	Audit     ports.AuditSink
	Settings  ports.SettingsStore
	RateLimit ports.RateLimitStore

	DB    *sqlite.DB
	Redis *goredis.Client

	closers []io.Closer
	stop    chan struct{}
}

// OpenStores opens the backend selected by cfg.Storage.Backend:
//
//	memory  everything in process
//	sqlite  ledger, audit and settings in SQLite; rate windows in process
//	redis   ledger and rate windows in Redis; audit and settings in SQLite
func OpenStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	s := &Stores{stop: make(chan struct{})}

	switch cfg.Storage.Backend {
	case "memory":
		ls := memory.NewLedgerStore(memory.LedgerStoreConfig{Retention: cfg.Storage.Retention})
		rs := memory.NewRateLimitStore(memory.RateLimitConfig{CleanupInterval: cfg.RateLimit.CleanupInterval})
		s.Ledger, s.RateLimit = ls, rs
		s.Audit = memory.NewAuditStore()
		s.Settings = memory.NewSettingsStore()
		s.closers = append(s.closers, ls, rs)

	case "sqlite", "redis":
		db, err := openDB(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		s.DB = db
		s.Audit = sqlite.NewAuditStore(db)
		s.Settings = sqlite.NewSettingsStore(db)

		if cfg.Storage.Backend == "sqlite" {
			ls := sqlite.NewLedgerStore(db)
			rs := memory.NewRateLimitStore(memory.RateLimitConfig{CleanupInterval: cfg.RateLimit.CleanupInterval})
			s.Ledger, s.RateLimit = ls, rs
			s.closers = append(s.closers, rs)
			if cfg.Storage.Retention > 0 {
				go s.cleanupLoop(ls, cfg.Storage.Retention, logger)
			}
			break
		}

		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		s.Redis = client
		s.Ledger = redis.NewLedgerStore(client, cfg.Redis.Prefix, cfg.Storage.Retention)
		s.RateLimit = redis.NewRateLimitStore(client, cfg.Redis.Prefix)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	logger.Info().Str("backend", cfg.Storage.Backend).Msg("stores initialized")
	return s, nil
}

func openDB(path string) (*sqlite.DB, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// cleanupLoop drops ledger rows whose window started before the
// retention cutoff. It only runs when storage.retention is set.
func (s *Stores) cleanupLoop(ls *sqlite.LedgerStore, retention time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := ls.CleanupStale(context.Background(), time.Now().Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("ledger cleanup failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("removed", n).Msg("stale ledger entries removed")
			}
		case <-s.stop:
			return
		}
	}
}

// HealthCheck pings the persistent backends.
func (s *Stores) HealthCheck(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.HealthCheck(ctx); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every store.
func (s *Stores) Close() error {
	close(s.stop)

	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
