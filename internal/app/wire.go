package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/synthbet/arbpipeline/internal/blob/s3"
	"github.com/synthbet/arbpipeline/internal/cache/redis"
	"github.com/synthbet/arbpipeline/internal/config"
	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/processor"
	"github.com/synthbet/arbpipeline/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Ticks       domain.TickStore
	Arbs        domain.ArbStore
	Validations domain.ValidationStore
	Audit       domain.AuditStore

	// Caches
	TickCache domain.TickCache
	History   domain.PriceHistory
	Publisher domain.ApprovedPublisher

	// Tick log
	Logs processor.LogOpener
}

// needsRedis returns true for modes that require the cache and publisher.
func needsRedis(mode string) bool {
	switch mode {
	case "pipeline", "validate":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that write the append-only tick log.
func needsS3(mode string) bool {
	return mode == "pipeline"
}

// logOpener adapts the S3 log store to the processor's per-batch opener.
type logOpener struct {
	logs *s3blob.LogStore
}

func (o logOpener) Open(ctx context.Context, batchID string) (domain.TickLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.logs.Open(batchID), nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode persists or reads positions) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Ticks = postgres.NewTickStore(pool)
	deps.Arbs = postgres.NewArbStore(pool)
	deps.Validations = postgres.NewValidationStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis (only for modes that cache ticks or publish approvals) ---
	if needsRedis(cfg.Mode) {
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

		tickTTL := 2 * time.Hour
		if cfg.Redis.TickTTLMinutes > 0 {
			tickTTL = time.Duration(cfg.Redis.TickTTLMinutes) * time.Minute
		}
		historyPoints := 512
		if cfg.Redis.HistoryMaxPoints > 0 {
			historyPoints = cfg.Redis.HistoryMaxPoints
		}

		deps.TickCache = redis.NewTickCache(redisClient, tickTTL)
		deps.History = redis.NewPriceHistory(redisClient, historyPoints)
		deps.Publisher = redis.NewPublisher(redisClient)
	}

	// --- S3 tick log (only for modes that process live batches) ---
	if needsS3(cfg.Mode) {
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
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 health: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Logs = logOpener{logs: s3blob.NewLogStore(s3Client, cfg.S3.LogPrefix)}
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("mode", cfg.Mode),
		slog.Bool("redis", needsRedis(cfg.Mode)),
		slog.Bool("s3", needsS3(cfg.Mode)),
	)

	return deps, cleanup, nil
}
