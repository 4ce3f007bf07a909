// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/applelectricals/microjpeg/domain/pricing"
	"github.com/applelectricals/microjpeg/domain/tier"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Settings  SettingsConfig  `yaml:"settings"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Plans     PlansConfig     `yaml:"plans"`
	Pricing   PricingConfig   `yaml:"pricing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects where the usage ledger and audit log live.
// Use "memory", "sqlite" or "redis". With "redis" the ledger and rate
// windows live in Redis while audit and settings stay in SQLite.
type StorageConfig struct {
	Backend   string        `yaml:"backend"`
	Path      string        `yaml:"path"`      // SQLite database file
	Retention time.Duration `yaml:"retention"` // 0 keeps ledger entries forever
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SettingsConfig configures the runtime settings cache.
type SettingsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AdminConfig lists the tokens accepted on admin endpoints and overrides.
type AdminConfig struct {
	Tokens []AdminTokenConfig `yaml:"tokens"`
}

// AdminTokenConfig is one named administrator token. Only the bcrypt hash
// is stored; generate it with `microjpeg hash-token`.
type AdminTokenConfig struct {
	Name      string `yaml:"name"`
	TokenHash string `yaml:"token_hash"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
	// File, when set, writes logs to a rotated file instead of stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// RateLimitConfig configures the rate limit window store.
type RateLimitConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PerCategoryConfig holds one value per operation category.
type PerCategoryConfig struct {
	Regular int64 `yaml:"regular"`
	Raw     int64 `yaml:"raw"`
}

// TierConfig configures one plan tier.
type TierConfig struct {
	ID                    string            `yaml:"id"`
	Name                  string            `yaml:"name"`
	Rank                  int               `yaml:"rank"`
	Policy                string            `yaml:"policy"` // "monthly_quota" or "unmetered"
	MonthlyFreeOperations PerCategoryConfig `yaml:"monthly_free_operations"`
	FileSizeCeilingMB     PerCategoryConfig `yaml:"file_size_ceiling_mb"`
	RateCeilingPerHour    int               `yaml:"rate_ceiling_per_hour"`
	ConcurrencyCeiling    int               `yaml:"concurrency_ceiling"`
	Capabilities          []string          `yaml:"capabilities"`
}

// PlansConfig configures how plan labels map to tiers.
type PlansConfig struct {
	Aliases       map[string]string `yaml:"aliases"`
	BillingCycles []string          `yaml:"billing_cycles"`
	Fallback      string            `yaml:"fallback"`
	Anonymous     string            `yaml:"anonymous"`
}

// PricingConfig configures pay-as-you-go bands and prepaid bundles.
type PricingConfig struct {
	Currency string         `yaml:"currency"`
	Bands    []BandConfig   `yaml:"bands"`
	Bundles  []BundleConfig `yaml:"bundles"`
}

// BandConfig is one pricing band. A missing upper bound means unbounded.
type BandConfig struct {
	Lower     int64  `yaml:"lower"`
	Upper     *int64 `yaml:"upper,omitempty"`
	UnitPrice string `yaml:"unit_price"` // decimal, e.g. "0.005"
}

// BundleConfig is one prepaid bundle.
type BundleConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Operations int64  `yaml:"operations"`
	Price      string `yaml:"price"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	data = []byte(expandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration from defaults and environment
// variables only.
//
// Environment variables:
//
//	MICROJPEG_SERVER_HOST       - Server host (default: 0.0.0.0)
//	MICROJPEG_SERVER_PORT       - Server port (default: 8080)
//	MICROJPEG_STORAGE_BACKEND   - memory, sqlite or redis (default: sqlite)
//	MICROJPEG_STORAGE_PATH      - SQLite database file (default: microjpeg.db)
//	MICROJPEG_REDIS_ADDR        - Redis address (default: localhost:6379)
//	MICROJPEG_REDIS_PASSWORD    - Redis password
//	MICROJPEG_REDIS_DB          - Redis database number
//	MICROJPEG_SETTINGS_TTL      - Settings cache TTL (default: 5s)
//	MICROJPEG_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	MICROJPEG_LOG_FORMAT        - Log format: json or console (default: json)
//	MICROJPEG_LOG_FILE          - Rotated log file path
//	MICROJPEG_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true
	return finish(&cfg)
}

// LoadWithFallback loads path when it exists and falls back to
// LoadFromEnv otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// expandEnv replaces $VAR and ${VAR} with set environment variables.
// Unset references are left as written so bcrypt hashes ("$2a$10$...")
// survive expansion.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "$" + key
	})
}

func finish(cfg *Config) (*Config, error) {
	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies MICROJPEG_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("MICROJPEG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MICROJPEG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MICROJPEG_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("MICROJPEG_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Storage configuration
	if v := os.Getenv("MICROJPEG_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("MICROJPEG_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	// Redis configuration
	if v := os.Getenv("MICROJPEG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MICROJPEG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MICROJPEG_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("MICROJPEG_SETTINGS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Settings.CacheTTL = d
		}
	}

	// Logging configuration
	if v := os.Getenv("MICROJPEG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MICROJPEG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MICROJPEG_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Metrics configuration
	if v := os.Getenv("MICROJPEG_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MICROJPEG_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "microjpeg.db"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "microjpeg"
	}

	if cfg.Settings.CacheTTL == 0 {
		cfg.Settings.CacheTTL = 5 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.RateLimit.CleanupInterval == 0 {
		cfg.RateLimit.CleanupInterval = 10 * time.Minute
	}

	// Built-in tier table if none configured
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = tierConfigs(tier.DefaultTiers())
	}
	if len(cfg.Pricing.Bands) == 0 {
		def := pricing.DefaultSchedule()
		cfg.Pricing.Bands = bandConfigs(def.Bands)
		if cfg.Pricing.Bundles == nil {
			cfg.Pricing.Bundles = bundleConfigs(def.Bundles)
		}
	}
	if cfg.Pricing.Currency == "" {
		cfg.Pricing.Currency = "USD"
	}
}

func validate(cfg *Config) error {
	validBackends := map[string]bool{"memory": true, "sqlite": true, "redis": true}
	if !validBackends[cfg.Storage.Backend] {
		return fmt.Errorf("storage.backend must be 'memory', 'sqlite' or 'redis', got %q", cfg.Storage.Backend)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Settings.CacheTTL < 0 {
		return fmt.Errorf("settings.cache_ttl must not be negative")
	}

	for i, tok := range cfg.Admin.Tokens {
		if tok.Name == "" {
			return fmt.Errorf("admin.tokens[%d].name is required", i)
		}
		if !strings.HasPrefix(tok.TokenHash, "$2") {
			return fmt.Errorf("admin.tokens[%d].token_hash must be a bcrypt hash", i)
		}
	}

	for i, t := range cfg.Tiers {
		if t.ID == "" {
			return fmt.Errorf("tiers[%d].id is required", i)
		}
	}

	if _, err := cfg.Catalog(); err != nil {
		return err
	}
	if _, err := cfg.Schedule(); err != nil {
		return err
	}
	return nil
}

// Catalog builds the tier catalog described by the configuration.
func (c *Config) Catalog() (*tier.Catalog, error) {
	known := make(map[tier.Capability]bool)
	for _, cp := range tier.KnownCapabilities() {
		known[cp] = true
	}

	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, tc := range c.Tiers {
		caps := make([]tier.Capability, 0, len(tc.Capabilities))
		for _, name := range tc.Capabilities {
			cp := tier.Capability(name)
			if !known[cp] {
				return nil, fmt.Errorf("tier %s: unknown capability %q", tc.ID, name)
			}
			caps = append(caps, cp)
		}
		if tc.MonthlyFreeOperations.Regular < 0 || tc.MonthlyFreeOperations.Raw < 0 {
			return nil, fmt.Errorf("tier %s: monthly_free_operations must not be negative", tc.ID)
		}
		if tc.FileSizeCeilingMB.Regular < 0 || tc.FileSizeCeilingMB.Raw < 0 {
			return nil, fmt.Errorf("tier %s: file_size_ceiling_mb must not be negative", tc.ID)
		}

		name := tc.Name
		if name == "" {
			name = tc.ID
		}
		tiers = append(tiers, tier.Tier{
			ID:          tier.ID(tc.ID),
			DisplayName: name,
			Rank:        tc.Rank,
			Policy:      tier.MeteringPolicy(tc.Policy),
			MonthlyFreeOperations: tier.PerCategory{
				Regular: tc.MonthlyFreeOperations.Regular,
				Raw:     tc.MonthlyFreeOperations.Raw,
			},
			FileSizeCeiling: tier.PerCategory{
				Regular: tc.FileSizeCeilingMB.Regular * tier.MB,
				Raw:     tc.FileSizeCeilingMB.Raw * tier.MB,
			},
			RateCeilingPerHour: tc.RateCeilingPerHour,
			ConcurrencyCeiling: tc.ConcurrencyCeiling,
			Capabilities:       tier.CapabilitySet(caps...),
		})
	}

	aliases := make(map[string]tier.ID, len(c.Plans.Aliases))
	for label, id := range c.Plans.Aliases {
		aliases[label] = tier.ID(id)
	}

	cat, err := tier.NewCatalog(tier.CatalogConfig{
		Tiers:         tiers,
		Aliases:       aliases,
		BillingCycles: c.Plans.BillingCycles,
		Fallback:      tier.ID(c.Plans.Fallback),
		AnonymousTier: tier.ID(c.Plans.Anonymous),
	})
	if err != nil {
		return nil, fmt.Errorf("build tier catalog: %w", err)
	}
	return cat, nil
}

// Schedule builds the pricing schedule described by the configuration.
func (c *Config) Schedule() (pricing.Schedule, error) {
	bands := make(pricing.Bands, 0, len(c.Pricing.Bands))
	for i, bc := range c.Pricing.Bands {
		price, err := pricing.ParseMoney(bc.UnitPrice)
		if err != nil {
			return pricing.Schedule{}, fmt.Errorf("pricing.bands[%d].unit_price: %w", i, err)
		}
		upper := pricing.Unbounded
		if bc.Upper != nil {
			upper = *bc.Upper
		}
		bands = append(bands, pricing.Band{Lower: bc.Lower, Upper: upper, UnitPrice: price})
	}

	bundles := make([]pricing.Bundle, 0, len(c.Pricing.Bundles))
	for i, bc := range c.Pricing.Bundles {
		price, err := pricing.ParseMoney(bc.Price)
		if err != nil {
			return pricing.Schedule{}, fmt.Errorf("pricing.bundles[%d].price: %w", i, err)
		}
		bundles = append(bundles, pricing.Bundle{ID: bc.ID, Name: bc.Name, Operations: bc.Operations, Price: price})
	}

	s, err := pricing.NewSchedule(c.Pricing.Currency, bands, bundles)
	if err != nil {
		return pricing.Schedule{}, fmt.Errorf("build pricing schedule: %w", err)
	}
	return s, nil
}

func tierConfigs(tiers []tier.Tier) []TierConfig {
	out := make([]TierConfig, 0, len(tiers))
	for _, t := range tiers {
		caps := make([]string, 0, len(t.Capabilities))
		for _, cp := range t.CapabilityList() {
			caps = append(caps, string(cp))
		}
		out = append(out, TierConfig{
			ID:     string(t.ID),
			Name:   t.DisplayName,
			Rank:   t.Rank,
			Policy: string(t.Policy),
			MonthlyFreeOperations: PerCategoryConfig{
				Regular: t.MonthlyFreeOperations.Regular,
				Raw:     t.MonthlyFreeOperations.Raw,
			},
			FileSizeCeilingMB: PerCategoryConfig{
				Regular: t.FileSizeCeiling.Regular / tier.MB,
				Raw:     t.FileSizeCeiling.Raw / tier.MB,
			},
			RateCeilingPerHour: t.RateCeilingPerHour,
			ConcurrencyCeiling: t.ConcurrencyCeiling,
			Capabilities:       caps,
		})
	}
	return out
}

func bandConfigs(bands pricing.Bands) []BandConfig {
	out := make([]BandConfig, 0, len(bands))
	for _, b := range bands {
		bc := BandConfig{Lower: b.Lower, UnitPrice: b.UnitPrice.String()}
		if !b.IsUnbounded() {
			upper := b.Upper
			bc.Upper = &upper
		}
		out = append(out, bc)
	}
	return out
}

func bundleConfigs(bundles []pricing.Bundle) []BundleConfig {
	out := make([]BundleConfig, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, BundleConfig{ID: b.ID, Name: b.Name, Operations: b.Operations, Price: b.Price.String()})
	}
	return out
}
