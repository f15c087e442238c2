package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CASCADIAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CASCADIAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.EventSource, "CASCADIAN_ENGINE_EVENT_SOURCE")
	setInt(&cfg.Engine.MaxConcurrentWallets, "CASCADIAN_ENGINE_MAX_CONCURRENT_WALLETS")
	setDuration(&cfg.Engine.WalletTimeout, "CASCADIAN_ENGINE_WALLET_TIMEOUT")
	setInt(&cfg.Engine.LookupChunkSize, "CASCADIAN_ENGINE_LOOKUP_CHUNK_SIZE")
	setBool(&cfg.Engine.ArchiveResults, "CASCADIAN_ENGINE_ARCHIVE_RESULTS")

	// ── Policy ──
	setStr(&cfg.Policy.CostBasisMethod, "CASCADIAN_POLICY_COST_BASIS_METHOD")
	setStr(&cfg.Policy.SettlementMode, "CASCADIAN_POLICY_SETTLEMENT_MODE")
	setFloat64(&cfg.Policy.DefaultMarkPrice, "CASCADIAN_POLICY_DEFAULT_MARK_PRICE")
	setFloat64(&cfg.Policy.WashEpsilon, "CASCADIAN_POLICY_WASH_EPSILON")

	// ── Quality ──
	setFloat64(&cfg.Quality.ExternalSellLowPct, "CASCADIAN_QUALITY_EXTERNAL_SELL_LOW_PCT")
	setFloat64(&cfg.Quality.ExternalSellMediumPct, "CASCADIAN_QUALITY_EXTERNAL_SELL_MEDIUM_PCT")
	setFloat64(&cfg.Quality.MappedRatioLow, "CASCADIAN_QUALITY_MAPPED_RATIO_LOW")
	setFloat64(&cfg.Quality.MappedRatioMedium, "CASCADIAN_QUALITY_MAPPED_RATIO_MEDIUM")
	setInt(&cfg.Quality.IrregularLowCount, "CASCADIAN_QUALITY_IRREGULAR_LOW_COUNT")
	setInt(&cfg.Quality.IrregularMediumCount, "CASCADIAN_QUALITY_IRREGULAR_MEDIUM_COUNT")

	// ── Verify ──
	setFloat64(&cfg.Verify.AbsTolerance, "CASCADIAN_VERIFY_ABS_TOLERANCE")
	setFloat64(&cfg.Verify.RelTolerance, "CASCADIAN_VERIFY_REL_TOLERANCE")

	// ── Database ──
	setStr(&cfg.Database.DSN, "CASCADIAN_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CASCADIAN_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CASCADIAN_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CASCADIAN_DATABASE_NAME")
	setStr(&cfg.Database.User, "CASCADIAN_DATABASE_USER")
	setStr(&cfg.Database.Password, "CASCADIAN_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CASCADIAN_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "CASCADIAN_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CASCADIAN_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CASCADIAN_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CASCADIAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CASCADIAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CASCADIAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CASCADIAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CASCADIAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CASCADIAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CASCADIAN_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ResolutionTTL, "CASCADIAN_REDIS_RESOLUTION_TTL")
	setDuration(&cfg.Redis.MarkPriceTTL, "CASCADIAN_REDIS_MARK_PRICE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CASCADIAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CASCADIAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "CASCADIAN_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "CASCADIAN_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "CASCADIAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CASCADIAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CASCADIAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CASCADIAN_S3_FORCE_PATH_STYLE")

	// ── Goldsky ──
	setStr(&cfg.Goldsky.URL, "CASCADIAN_GOLDSKY_URL")
	setStr(&cfg.Goldsky.APIKey, "CASCADIAN_GOLDSKY_API_KEY")
	setInt(&cfg.Goldsky.PageSize, "CASCADIAN_GOLDSKY_PAGE_SIZE")
	setInt(&cfg.Goldsky.MaxRetries, "CASCADIAN_GOLDSKY_MAX_RETRIES")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "CASCADIAN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "CASCADIAN_POLYMARKET_DATA_HOST")

	// ── Top-level ──
	setStr(&cfg.Mode, "CASCADIAN_MODE")
	setStr(&cfg.LogLevel, "CASCADIAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
