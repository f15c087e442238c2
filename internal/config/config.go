// Package config defines the top-level configuration for the P&L
// reconciliation engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CASCADIAN_* environment
// variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Policy     PolicyConfig     `toml:"policy"`
	Quality    QualityConfig    `toml:"quality"`
	Verify     VerifyConfig     `toml:"verify"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Goldsky    GoldskyConfig    `toml:"goldsky"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds execution parameters for wallet computations.
type EngineConfig struct {
	// EventSource selects where raw events are pulled from: "postgres"
	// (the event warehouse) or "goldsky" (directly from the subgraph).
	EventSource string `toml:"event_source"`
	// MaxConcurrentWallets bounds the batch worker pool so the event store
	// is not overwhelmed.
	MaxConcurrentWallets int `toml:"max_concurrent_wallets"`
	// WalletTimeout is the overall deadline for one wallet computation.
	// On timeout the wallet fails atomically; no partial P&L is returned.
	WalletTimeout duration `toml:"wallet_timeout"`
	// LookupChunkSize caps the number of keys per collaborator lookup call.
	LookupChunkSize int `toml:"lookup_chunk_size"`
	// ArchiveResults enables writing batch results to S3 cold storage.
	ArchiveResults bool `toml:"archive_results"`
}

// PolicyConfig holds the accounting policy knobs.
type PolicyConfig struct {
	// CostBasisMethod selects the inventory policy: "average" or "fifo".
	CostBasisMethod string `toml:"cost_basis_method"`
	// SettlementMode controls resolved-but-unredeemed positions:
	// "immediate" liquidates at resolution, "deferred" carries them as
	// unrealized at the payout price until an actual redemption event.
	SettlementMode string `toml:"settlement_mode"`
	// DefaultMarkPrice values open positions when no quote is available.
	DefaultMarkPrice float64 `toml:"default_mark_price"`
	// WashEpsilon is the per-outcome token tolerance for wash detection.
	WashEpsilon float64 `toml:"wash_epsilon"`
}

// QualityConfig holds the empirically tuned confidence thresholds. They are
// calibration knobs, not constants; keep them configurable.
type QualityConfig struct {
	ExternalSellLowPct    float64 `toml:"external_sell_low_pct"`
	ExternalSellMediumPct float64 `toml:"external_sell_medium_pct"`
	MappedRatioLow        float64 `toml:"mapped_ratio_low"`
	MappedRatioMedium     float64 `toml:"mapped_ratio_medium"`
	IrregularLowCount     int     `toml:"irregular_low_count"`
	IrregularMediumCount  int     `toml:"irregular_medium_count"`
}

// VerifyConfig holds tolerances for comparing engine output against the
// reference P&L source.
type VerifyConfig struct {
	AbsTolerance float64 `toml:"abs_tolerance"` // dollars
	RelTolerance float64 `toml:"rel_tolerance"` // fraction of reference
}

// DatabaseConfig holds PostgreSQL connection parameters for the event
// warehouse and result store.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the market-data caches.
type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	ResolutionTTL duration `toml:"resolution_ttl"`
	MarkPriceTTL  duration `toml:"mark_price_ttl"`
}

// S3Config holds S3-compatible object storage parameters for result
// archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// GoldskyConfig holds the subgraph indexer endpoint used to pull raw order
// fills and CTF lifecycle events.
type GoldskyConfig struct {
	URL        string `toml:"url"`
	APIKey     string `toml:"api_key"`
	PageSize   int    `toml:"page_size"`
	MaxRetries int    `toml:"max_retries"`
}

// PolymarketConfig holds the Gamma API endpoint used for token resolution,
// resolutions, and mark prices, plus the leaderboard API used as the
// reference P&L source in verify mode.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			EventSource:          "postgres",
			MaxConcurrentWallets: 8,
			WalletTimeout:        duration{2 * time.Minute},
			LookupChunkSize:      500,
			ArchiveResults:       false,
		},
		Policy: PolicyConfig{
			CostBasisMethod:  "average",
			SettlementMode:   "immediate",
			DefaultMarkPrice: 0.5,
			WashEpsilon:      0.001,
		},
		Quality: QualityConfig{
			ExternalSellLowPct:    5.0,
			ExternalSellMediumPct: 0.5,
			MappedRatioLow:        0.90,
			MappedRatioMedium:     0.999,
			IrregularLowCount:     100,
			IrregularMediumCount:  10,
		},
		Verify: VerifyConfig{
			AbsTolerance: 1.0,
			RelTolerance: 0.01,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "cascadian",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:       true,
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      20,
			MaxRetries:    3,
			ResolutionTTL: duration{24 * time.Hour},
			MarkPriceTTL:  duration{60 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "cascadian-pnl",
			Prefix:         "results",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Goldsky: GoldskyConfig{
			PageSize:   1000,
			MaxRetries: 3,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://lb-api.polymarket.com",
		},
		Mode:     "compute",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"compute": true,
	"batch":   true,
	"verify":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: compute, batch, verify)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	switch c.Engine.EventSource {
	case "postgres", "goldsky":
	default:
		errs = append(errs, fmt.Sprintf("engine: unknown event_source %q (valid: postgres, goldsky)", c.Engine.EventSource))
	}
	if c.Engine.MaxConcurrentWallets < 1 {
		errs = append(errs, "engine: max_concurrent_wallets must be >= 1")
	}
	if c.Engine.WalletTimeout.Duration <= 0 {
		errs = append(errs, "engine: wallet_timeout must be > 0")
	}
	if c.Engine.LookupChunkSize < 1 {
		errs = append(errs, "engine: lookup_chunk_size must be >= 1")
	}

	// Policy
	switch c.Policy.CostBasisMethod {
	case "average", "fifo":
	default:
		errs = append(errs, fmt.Sprintf("policy: unknown cost_basis_method %q (valid: average, fifo)", c.Policy.CostBasisMethod))
	}
	switch c.Policy.SettlementMode {
	case "immediate", "deferred":
	default:
		errs = append(errs, fmt.Sprintf("policy: unknown settlement_mode %q (valid: immediate, deferred)", c.Policy.SettlementMode))
	}
	if c.Policy.DefaultMarkPrice < 0 || c.Policy.DefaultMarkPrice > 1 {
		errs = append(errs, fmt.Sprintf("policy: default_mark_price must be in [0,1], got %g", c.Policy.DefaultMarkPrice))
	}
	if c.Policy.WashEpsilon <= 0 {
		errs = append(errs, "policy: wash_epsilon must be > 0")
	}

	// Quality: the low gate must be looser than the medium gate.
	if c.Quality.ExternalSellLowPct < c.Quality.ExternalSellMediumPct {
		errs = append(errs, "quality: external_sell_low_pct must be >= external_sell_medium_pct")
	}
	if c.Quality.MappedRatioLow > c.Quality.MappedRatioMedium {
		errs = append(errs, "quality: mapped_ratio_low must be <= mapped_ratio_medium")
	}
	if c.Quality.IrregularLowCount < c.Quality.IrregularMediumCount {
		errs = append(errs, "quality: irregular_low_count must be >= irregular_medium_count")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.ResolutionTTL.Duration <= 0 {
			errs = append(errs, "redis: resolution_ttl must be > 0")
		}
		if c.Redis.MarkPriceTTL.Duration <= 0 {
			errs = append(errs, "redis: mark_price_ttl must be > 0")
		}
	}

	// S3 is only required when archival is on.
	if c.Engine.ArchiveResults {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when engine.archive_results is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when engine.archive_results is set")
		}
	}

	// Goldsky is only required when it is the event source.
	if c.Engine.EventSource == "goldsky" {
		if c.Goldsky.URL == "" {
			errs = append(errs, "goldsky: url is required when engine.event_source is goldsky")
		}
		if c.Goldsky.PageSize < 1 {
			errs = append(errs, "goldsky: page_size must be >= 1")
		}
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	// Verify
	if c.Mode == "verify" {
		if c.Verify.AbsTolerance <= 0 {
			errs = append(errs, "verify: abs_tolerance must be > 0")
		}
		if c.Verify.RelTolerance <= 0 {
			errs = append(errs, "verify: rel_tolerance must be > 0")
		}
		if c.Polymarket.DataHost == "" {
			errs = append(errs, "polymarket: data_host is required in verify mode")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
