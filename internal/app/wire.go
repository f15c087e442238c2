package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/Scotty108/Cascadian-sub010/internal/blob/s3"
	"github.com/Scotty108/Cascadian-sub010/internal/cache/redis"
	"github.com/Scotty108/Cascadian-sub010/internal/config"
	"github.com/Scotty108/Cascadian-sub010/internal/domain"
	"github.com/Scotty108/Cascadian-sub010/internal/engine"
	"github.com/Scotty108/Cascadian-sub010/internal/platform/goldsky"
	"github.com/Scotty108/Cascadian-sub010/internal/platform/polymarket"
	"github.com/Scotty108/Cascadian-sub010/internal/service"
	"github.com/Scotty108/Cascadian-sub010/internal/store/postgres"
)

// Dependencies bundles the services the application modes operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	PnL    *service.PnLService
	Verify *service.VerifyService // nil outside verify mode
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- PostgreSQL: event warehouse + result store ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	eventStore := postgres.NewEventStore(pgClient.Pool())
	resultStore := postgres.NewResultStore(pgClient.Pool())

	// --- Event source: warehouse or subgraph ---
	var events domain.EventSource = eventStore
	if cfg.Engine.EventSource == "goldsky" {
		events = goldsky.NewClient(goldsky.ClientConfig{
			GraphQLURL: cfg.Goldsky.URL,
			APIKey:     cfg.Goldsky.APIKey,
			PageSize:   cfg.Goldsky.PageSize,
			MaxRetries: cfg.Goldsky.MaxRetries,
		})
	}

	// --- Market data: Gamma API, cached through Redis when enabled ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, 30*time.Second)

	var (
		resolutions domain.ResolutionSource = gamma
		marks       domain.MarkPriceSource  = gamma
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		resolutionCache := redis.NewResolutionCache(redisClient, cfg.Redis.ResolutionTTL.Duration)
		markCache := redis.NewMarkPriceCache(redisClient, cfg.Redis.MarkPriceTTL.Duration)
		resolutions = service.NewCachedResolutionSource(gamma, resolutionCache, logger)
		marks = service.NewCachedMarkPriceSource(gamma, markCache, logger)
	}

	// --- Engine ---
	eng, err := engine.New(events, gamma, resolutions, marks, engine.Options{
		CostBasisMethod:  cfg.Policy.CostBasisMethod,
		SettlementMode:   engine.SettlementMode(cfg.Policy.SettlementMode),
		DefaultMarkPrice: cfg.Policy.DefaultMarkPrice,
		WashEpsilon:      cfg.Policy.WashEpsilon,
		LookupChunkSize:  cfg.Engine.LookupChunkSize,
		WalletTimeout:    cfg.Engine.WalletTimeout.Duration,
		Quality: engine.QualityThresholds{
			ExternalSellLowPct:    cfg.Quality.ExternalSellLowPct,
			ExternalSellMediumPct: cfg.Quality.ExternalSellMediumPct,
			MappedRatioLow:        cfg.Quality.MappedRatioLow,
			MappedRatioMedium:     cfg.Quality.MappedRatioMedium,
			IrregularLowCount:     cfg.Quality.IrregularLowCount,
			IrregularMediumCount:  cfg.Quality.IrregularMediumCount,
		},
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: engine: %w", err)
	}

	// --- S3 archival (batch mode cold storage) ---
	var archiver domain.ResultArchiver
	if cfg.Engine.ArchiveResults {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		archiver = s3blob.NewArchiver(s3Client, cfg.S3.Prefix)
	}

	deps := &Dependencies{
		PnL: service.NewPnLService(
			eng, resultStore, eventStore, archiver,
			cfg.Engine.MaxConcurrentWallets, logger,
		),
	}

	if cfg.Mode == "verify" {
		data := polymarket.NewDataClient(cfg.Polymarket.DataHost, 30*time.Second)
		deps.Verify = service.NewVerifyService(
			deps.PnL, data,
			cfg.Verify.AbsTolerance, cfg.Verify.RelTolerance,
			logger,
		)
	}

	return deps, cleanup, nil
}
