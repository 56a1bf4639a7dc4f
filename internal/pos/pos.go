// Package pos holds what the POS orchestrators share: ERP model names and
// the collaborators every service is built from.
package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/shared"
)

// ERP models used by the POS flows.
const (
	ModelConfig        = "pos.config"
	ModelSession       = "pos.session"
	ModelOrder         = "pos.order"
	ModelOrderLine     = "pos.order.line"
	ModelPayment       = "pos.payment"
	ModelPaymentMethod = "pos.payment.method"
	ModelProduct       = "product.product"
	ModelTax           = "account.tax"
	ModelJournal       = "account.journal"
	ModelCompany       = "res.company"
	ModelCurrency      = "res.currency"
	ModelPicking       = "stock.picking"
	ModelMove          = "stock.move"
	ModelQuant         = "stock.quant"
	ModelLocation      = "stock.location"
	ModelWarehouse     = "stock.warehouse"
)

// AuditPort records operator actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Deps bundles collaborators shared by the POS orchestrators.
type Deps struct {
	ERP      erp.Caller
	Locker   *shared.Locker
	Logger   *slog.Logger
	Recorder fallback.Recorder
	Audit    AuditPort
}

// Log returns the configured logger or the default one.
func (d Deps) Log() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Chain names a fallback chain wired to the shared sinks.
func (d Deps) Chain(name string) fallback.Chain {
	return fallback.Chain{Name: name, Logger: d.Log(), Recorder: d.Recorder}
}

// Record writes an audit entry; failures are logged and otherwise ignored.
func (d Deps) Record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if d.Audit == nil {
		return
	}
	err := d.Audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		d.Log().WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// NotFound maps a missing ERP record onto shared.ErrNotFound.
func NotFound(err error, model string, id int64) error {
	if errors.Is(err, erp.ErrMissingRecord) {
		return fmt.Errorf("%w: %s %d", shared.ErrNotFound, model, id)
	}
	return err
}
