package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/modaboutique/backoffice/internal/audit"
	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/observability"
	"github.com/modaboutique/backoffice/internal/platform/cache"
	"github.com/modaboutique/backoffice/internal/platform/db"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Infra holds the process-level connections.
type Infra struct {
	Redis   *redis.Client
	Pool    *pgxpool.Pool
	ERP     *erp.Client
	Metrics *observability.Metrics
	logger  *slog.Logger
}

// OpenInfra connects to redis, optionally postgres, and prepares the ERP
// client. Postgres is skipped when PG_DSN is empty.
func OpenInfra(ctx context.Context, cfg *Config, logger *slog.Logger) (*Infra, error) {
	redisClient, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return nil, err
	}
	infra := &Infra{Redis: redisClient, Metrics: observability.NewMetrics(), logger: logger}

	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Pool = pool
		if err := db.Migrate(ctx, pool, shared.IdempotencySchema, shared.AuditSchema); err != nil {
			infra.Close()
			return nil, err
		}
	} else {
		logger.Warn("PG_DSN not set, payment idempotency and audit log disabled")
	}

	client, err := erp.New(erp.Config{
		URL:        cfg.ERPURL,
		Database:   cfg.ERPDatabase,
		Username:   cfg.ERPUsername,
		Password:   cfg.ERPPassword,
		Timeout:    cfg.ERPTimeout,
		SessionTTL: cfg.ERPSessionTTL,
	}, erp.WithLogger(logger), erp.WithObserver(infra.Metrics), erp.WithCredentialCache(redisClient))
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("app: erp client: %w", err)
	}
	infra.ERP = client
	return infra, nil
}

// Backends exposes the connections to NewContainer.
func (i *Infra) Backends() Backends {
	b := Backends{ERP: i.ERP, Redis: i.Redis, Metrics: i.Metrics}
	if i.Pool != nil {
		b.Idempotency = shared.NewIdempotencyStore(i.Pool)
		b.Audit = shared.NewAuditLogger(i.Pool)
		b.AuditLog = audit.NewRepository(i.Pool)
	}
	return b
}

// Close releases every connection.
func (i *Infra) Close() {
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
