package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modaboutique/backoffice/internal/audit"
	"github.com/modaboutique/backoffice/internal/auth"
	"github.com/modaboutique/backoffice/internal/catalog"
	"github.com/modaboutique/backoffice/internal/inventory"
	"github.com/modaboutique/backoffice/internal/platform/httpx"
	"github.com/modaboutique/backoffice/internal/pos/orders"
	"github.com/modaboutique/backoffice/internal/pos/payments"
	"github.com/modaboutique/backoffice/internal/pos/receipts"
	"github.com/modaboutique/backoffice/internal/pos/sessions"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/jobs"
	"github.com/modaboutique/backoffice/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Container *Container
	Inspector jobs.QueueInspector
	Report    *report.Client
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	c := params.Container
	logger := c.Logger
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  c.Config,
		Metrics: c.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if c.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}
	r.Route("/jobs", jobs.NewHandler(params.Inspector, logger).MountRoutes)
	r.Route("/report", report.NewHandler(params.Report, logger).MountRoutes)
	r.Route("/auth", auth.NewHandler(logger, c.Auth).MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(c.Auth))
		r.Route("/pos", func(r chi.Router) {
			sessions.NewHandler(logger, c.Sessions).MountRoutes(r)
			orders.NewHandler(logger, c.Orders).MountRoutes(r)
			stock.NewHandler(logger, c.Stock).MountRoutes(r)
			receipts.NewHandler(logger, c.Receipts).MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(PaymentRateLimit(c.Config.RateLimitPerMinute))
				payments.NewHandler(logger, c.Payments, c.Config.ERPPOSConfigID).MountRoutes(r)
			})
		})
		r.Route("/productos", catalog.NewHandler(logger, c.Catalog).MountRoutes)
		r.Route("/inventario", inventory.NewHandler(logger, c.Inventory).MountRoutes)
		if c.Timeline != nil {
			r.Route("/audit", audit.NewHandler(logger, c.Timeline).MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "not_found", "route not found")
	})
	return r
}
