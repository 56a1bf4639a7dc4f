package app

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/modaboutique/backoffice/internal/audit"
	"github.com/modaboutique/backoffice/internal/auth"
	"github.com/modaboutique/backoffice/internal/catalog"
	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/inventory"
	"github.com/modaboutique/backoffice/internal/observability"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/orders"
	"github.com/modaboutique/backoffice/internal/pos/payments"
	"github.com/modaboutique/backoffice/internal/pos/receipts"
	"github.com/modaboutique/backoffice/internal/pos/sessions"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Backends are the external collaborators the services are built on.
// Everything except ERP and Redis is optional.
type Backends struct {
	ERP         erp.Caller
	Redis       redis.UniversalClient
	Idempotency payments.Idempotency
	Audit       pos.AuditPort
	AuditLog    audit.Repository
	Queue       stock.Enqueuer
	Converter   receipts.Converter
	Metrics     *observability.Metrics
}

// Container holds the wired domain services.
type Container struct {
	Config     *Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Deps       pos.Deps
	Auth       *auth.Service
	Sessions   *sessions.Service
	Orders     *orders.Service
	Stock      *stock.Service
	Dispatcher *stock.Dispatcher
	Payments   *payments.Service
	Receipts   *receipts.Service
	Catalog    *catalog.Service
	Inventory  *inventory.Service
	Timeline   *audit.Service
}

// NewContainer wires every service against the given backends.
func NewContainer(cfg *Config, logger *slog.Logger, b Backends) (*Container, error) {
	if b.ERP == nil || b.Redis == nil {
		return nil, fmt.Errorf("app: erp and redis backends are required")
	}
	deps := pos.Deps{
		ERP:    b.ERP,
		Locker: shared.NewLocker(b.Redis, cfg.LockTTL),
		Logger: logger,
		Audit:  b.Audit,
	}
	if b.Metrics != nil {
		deps.Recorder = b.Metrics
	}

	stockCfg := stock.Config{
		LocationID:    cfg.ERPStockLocationID,
		AllowNegative: cfg.StockAllowNegative,
		Progress:      shared.NewProgress(b.Redis, cfg.StockProgressTTL),
	}
	if jm := b.Metrics.Jobs(); jm != nil {
		stockCfg.Clamps = jm
	}
	stockService := stock.NewService(deps, stockCfg)
	dispatcher := stock.NewDispatcher(stockService, b.Queue, cfg.StockReconcileMode)

	renderer, err := receipts.NewRenderer(receipts.NewMoney(cfg.ReceiptLocale), cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("app: receipt renderer: %w", err)
	}
	sessionService := sessions.NewService(deps, cfg.ERPPOSConfigID)

	var timeline *audit.Service
	if b.AuditLog != nil {
		timeline = audit.NewService(b.AuditLog)
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    b.Metrics,
		Deps:       deps,
		Auth:       auth.NewService(auth.NewStaticRepository(cfg.POSOperatorUsername, cfg.POSOperatorPasswordHash), cfg.JWTSecret, cfg.JWTTTL),
		Sessions:   sessionService,
		Orders:     orders.NewService(deps, sessionService),
		Stock:      stockService,
		Dispatcher: dispatcher,
		Payments:   payments.NewService(deps, b.Idempotency, dispatcher),
		Receipts:   receipts.NewService(deps, renderer, b.Converter),
		Catalog:    catalog.NewService(deps),
		Inventory:  inventory.NewService(deps, stockService),
		Timeline:   timeline,
	}, nil
}
