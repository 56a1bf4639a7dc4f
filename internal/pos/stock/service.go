package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/shared"
)

// ClampCounter counts quant writes clamped at zero.
type ClampCounter interface {
	AddClamped(count int)
}

// ProgressStore remembers the products whose quants were already written
// for an order.
type ProgressStore interface {
	Done(ctx context.Context, key string) ([]int64, error)
	Mark(ctx context.Context, key string, id int64) error
}

// Config tunes quant writes.
type Config struct {
	// LocationID is the internal stock location; zero resolves the
	// warehouse's lot_stock_id.
	LocationID    int64
	AllowNegative bool
	Clamps        ClampCounter
	// Progress makes direct quant writes resumable. Without it a partial
	// write stops the chain for good.
	Progress ProgressStore
}

// Service reconciles inventory for paid orders.
type Service struct {
	deps pos.Deps
	cfg  Config
}

// NewService constructs the reconciler.
func NewService(deps pos.Deps, cfg Config) *Service {
	return &Service{deps: deps, cfg: cfg}
}

// Reconcile moves stock for a paid order: through the order's picking when
// the ERP can build and validate one, otherwise by writing quants directly.
func (s *Service) Reconcile(ctx context.Context, orderID int64) (*Result, error) {
	var res *Result
	err := s.deps.Locker.WithLock(ctx, shared.OrderLockKey(orderID), func(ctx context.Context) error {
		var err error
		res, err = s.reconcile(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deps.Record(ctx, "stock.reconcile", pos.ModelOrder, orderID, map[string]any{"strategy": res.Strategy})
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, orderID int64) (*Result, error) {
	order, err := erp.Get[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, orderID, orderFields)
	if err != nil {
		return nil, pos.NotFound(err, "order", orderID)
	}
	if order.State == "draft" || order.State == "cancel" {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPaid, orderID, order.State)
	}

	if len(order.PickingIDs) > 0 {
		pickings, err := erp.Read[pickingRecord](ctx, s.deps.ERP, pos.ModelPicking, order.PickingIDs, []string{"state", "move_ids"})
		if err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(pickings, func(p pickingRecord) bool { return p.State != "done" && p.State != "cancel" }) {
			return &Result{OrderID: orderID, Strategy: StrategyAlreadyDone, PickingIDs: order.PickingIDs}, nil
		}
	}

	demand, err := s.demand(ctx, order.LineIDs)
	if err != nil {
		return nil, err
	}
	if len(demand) == 0 {
		return &Result{OrderID: orderID, Strategy: StrategyNothingToDo}, nil
	}
	written, err := s.written(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(written) > 0 {
		demand = slices.DeleteFunc(demand, func(d productDemand) bool { return written[d.productID] })
		if len(demand) == 0 {
			return &Result{OrderID: orderID, Strategy: StrategyAlreadyDone}, nil
		}
	}

	strategies := []fallback.Strategy[*Result]{
		{Name: StrategyOrderPicking, Run: func(ctx context.Context) (*Result, error) {
			return s.viaPicking(ctx, order)
		}},
		{Name: StrategyDirectQuant, Run: func(ctx context.Context) (*Result, error) {
			return s.viaQuants(ctx, orderID, demand)
		}},
	}
	if len(written) > 0 {
		// A picking would move the already written products again.
		strategies = strategies[1:]
		s.deps.Log().InfoContext(ctx, "resuming direct quant writes",
			slog.Int64("order_id", orderID), slog.Int("written", len(written)), slog.Int("remaining", len(demand)))
	}
	run, err := fallback.Run(ctx, s.deps.Chain("stock.reconcile"), strategies...)
	if err != nil {
		return nil, fmt.Errorf("reconcile order %d: %w", orderID, err)
	}
	run.Value.Strategy = run.Strategy
	return run.Value, nil
}

type productDemand struct {
	productID int64
	qty       decimal.Decimal
}

// demand sums sold quantities per stockable product, in line order.
func (s *Service) demand(ctx context.Context, lineIDs []int64) ([]productDemand, error) {
	lines, err := erp.Read[lineRecord](ctx, s.deps.ERP, pos.ModelOrderLine, lineIDs, []string{"product_id", "qty"})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(lines, func(a, b lineRecord) int { return int(a.ID - b.ID) })
	var ids []int64
	for _, l := range lines {
		if l.Product.Valid() && !slices.Contains(ids, l.Product.ID) {
			ids = append(ids, l.Product.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := erp.Read[productRecord](ctx, s.deps.ERP, pos.ModelProduct, ids, []string{"type"})
	if err != nil {
		return nil, err
	}
	skip := map[int64]bool{}
	for _, p := range products {
		if p.Type == "service" || p.Type == "combo" {
			skip[p.ID] = true
		}
	}
	var out []productDemand
	index := map[int64]int{}
	for _, l := range lines {
		if !l.Product.Valid() || skip[l.Product.ID] || !l.Qty.IsPositive() {
			continue
		}
		if i, ok := index[l.Product.ID]; ok {
			out[i].qty = out[i].qty.Add(l.Qty.Decimal)
			continue
		}
		index[l.Product.ID] = len(out)
		out = append(out, productDemand{productID: l.Product.ID, qty: l.Qty.Decimal})
	}
	return out, nil
}

// viaPicking creates the order picking when missing and drives it to done.
// Once any picking is validated the chain stops, since falling through to
// quant writes would move the same goods twice.
func (s *Service) viaPicking(ctx context.Context, order orderRecord) (*Result, error) {
	ids := order.PickingIDs
	if len(ids) == 0 {
		if err := erp.Execute(ctx, s.deps.ERP, pos.ModelOrder, "_create_order_picking", []int64{order.ID}, nil); err != nil {
			return nil, err
		}
		fresh, err := erp.Get[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, order.ID, []string{"picking_ids"})
		if err != nil {
			return nil, err
		}
		ids = fresh.PickingIDs
	}
	if len(ids) == 0 {
		return nil, errors.New("erp created no picking for the order")
	}

	validated := 0
	for _, id := range ids {
		if err := s.validatePicking(ctx, id); err != nil {
			if validated > 0 {
				return nil, fallback.Stop(fmt.Errorf("picking %d after %d validated: %w", id, validated, err))
			}
			return nil, fmt.Errorf("picking %d: %w", id, err)
		}
		validated++
	}
	return &Result{OrderID: order.ID, PickingIDs: ids}, nil
}

func (s *Service) validatePicking(ctx context.Context, id int64) error {
	picking, err := erp.Get[pickingRecord](ctx, s.deps.ERP, pos.ModelPicking, id, []string{"state", "move_ids"})
	if err != nil {
		return err
	}
	switch picking.State {
	case "done", "cancel":
		return nil
	case "draft":
		if err := erp.Execute(ctx, s.deps.ERP, pos.ModelPicking, "action_confirm", []int64{id}, nil); err != nil {
			return err
		}
		fallthrough
	case "confirmed", "waiting":
		if err := erp.Execute(ctx, s.deps.ERP, pos.ModelPicking, "action_assign", []int64{id}, nil); err != nil {
			return err
		}
	}

	moves, err := erp.Read[moveRecord](ctx, s.deps.ERP, pos.ModelMove, picking.MoveIDs, []string{"product_uom_qty", "quantity"})
	if err != nil {
		return err
	}
	for _, m := range moves {
		if m.Quantity.LessThan(m.Demand.Decimal) {
			if err := erp.Write(ctx, s.deps.ERP, pos.ModelMove, []int64{m.ID}, map[string]any{"quantity": m.Demand.InexactFloat64()}); err != nil {
				return err
			}
		}
	}
	if err := erp.Execute(ctx, s.deps.ERP, pos.ModelPicking, "button_validate", []int64{id}, nil); err != nil {
		return err
	}

	done, err := erp.Get[pickingRecord](ctx, s.deps.ERP, pos.ModelPicking, id, []string{"state"})
	if err != nil {
		return err
	}
	if done.State != "done" {
		return fmt.Errorf("picking still %s after validation", done.State)
	}
	return nil
}

func (s *Service) viaQuants(ctx context.Context, orderID int64, demand []productDemand) (*Result, error) {
	location, err := s.location(ctx)
	if err != nil {
		return nil, err
	}
	key := shared.StockProgressKey(orderID)
	res := &Result{OrderID: orderID}
	for _, d := range demand {
		adj, err := s.shiftQuant(ctx, d.productID, location, d.qty.Neg())
		if err != nil {
			if len(res.Adjusted) > 0 && s.cfg.Progress == nil {
				return nil, fallback.Stop(fmt.Errorf("product %d after %d quants written: %w", d.productID, len(res.Adjusted), err))
			}
			return nil, fmt.Errorf("product %d: %w", d.productID, err)
		}
		res.Adjusted = append(res.Adjusted, adj)
		if s.cfg.Progress == nil {
			continue
		}
		if err := s.cfg.Progress.Mark(ctx, key, d.productID); err != nil {
			// The quant is written but a retry could not know it.
			return nil, fallback.Stop(fmt.Errorf("product %d written: %w", d.productID, err))
		}
	}
	return res, nil
}

// written returns the products already moved for the order by an earlier
// partial run.
func (s *Service) written(ctx context.Context, orderID int64) (map[int64]bool, error) {
	if s.cfg.Progress == nil {
		return nil, nil
	}
	ids, err := s.cfg.Progress.Done(ctx, shared.StockProgressKey(orderID))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// location resolves the internal location quants are written to.
func (s *Service) location(ctx context.Context) (int64, error) {
	if s.cfg.LocationID > 0 {
		return s.cfg.LocationID, nil
	}
	type warehouse struct {
		LotStock erp.Many2One `json:"lot_stock_id"`
	}
	wh, ok, err := erp.First[warehouse](ctx, s.deps.ERP, pos.ModelWarehouse, nil,
		erp.SearchOptions{Fields: []string{"lot_stock_id"}, Order: "id"})
	if err != nil {
		return 0, fmt.Errorf("resolve stock location: %w", err)
	}
	if !ok || !wh.LotStock.Valid() {
		return 0, errors.New("no warehouse stock location configured")
	}
	return wh.LotStock.ID, nil
}

// quant finds the product's quant at location, creating it when missing.
func (s *Service) quant(ctx context.Context, productID, location int64) (quantRecord, error) {
	q, ok, err := erp.First[quantRecord](ctx, s.deps.ERP, pos.ModelQuant,
		erp.Where("product_id", "=", productID).And("location_id", "=", location),
		erp.SearchOptions{Fields: quantFields, Order: "id"})
	if err != nil || ok {
		return q, err
	}
	id, err := erp.Create(ctx, s.deps.ERP, pos.ModelQuant, map[string]any{
		"product_id":  productID,
		"location_id": location,
	})
	if err != nil {
		return q, fmt.Errorf("create quant: %w", err)
	}
	return erp.Get[quantRecord](ctx, s.deps.ERP, pos.ModelQuant, id, quantFields)
}

func (s *Service) target(productID int64, current, want decimal.Decimal) (decimal.Decimal, bool) {
	if want.IsNegative() && !s.cfg.AllowNegative {
		s.deps.Log().Warn("stock clamped at zero",
			slog.Int64("product_id", productID),
			slog.String("current", current.String()),
			slog.String("requested", want.String()))
		if s.cfg.Clamps != nil {
			s.cfg.Clamps.AddClamped(1)
		}
		return decimal.Zero, true
	}
	return want, false
}

// shiftQuant writes quantity + delta onto the quant directly.
func (s *Service) shiftQuant(ctx context.Context, productID, location int64, delta decimal.Decimal) (QuantAdjustment, error) {
	q, err := s.quant(ctx, productID, location)
	if err != nil {
		return QuantAdjustment{}, err
	}
	after, clamped := s.target(productID, q.Quantity.Decimal, q.Quantity.Add(delta))
	if err := erp.Write(ctx, s.deps.ERP, pos.ModelQuant, []int64{q.ID}, map[string]any{"quantity": after.InexactFloat64()}); err != nil {
		return QuantAdjustment{}, fmt.Errorf("write quant %d: %w", q.ID, err)
	}
	return QuantAdjustment{
		ProductID: productID, LocationID: location, QuantID: q.ID,
		Before: q.Quantity.Decimal, After: after, Clamped: clamped,
	}, nil
}

// Adjust sets or shifts a product's on-hand quantity, preferring the ERP's
// inventory apply flow over a raw quant write.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	if in.ProductID <= 0 {
		return nil, fmt.Errorf("%w: product_id is required", shared.ErrValidation)
	}
	if (in.Quantity == nil) == (in.Delta == nil) {
		return nil, fmt.Errorf("%w: exactly one of quantity or delta is required", shared.ErrValidation)
	}
	if _, err := erp.Get[productRecord](ctx, s.deps.ERP, pos.ModelProduct, in.ProductID, []string{"type"}); err != nil {
		return nil, pos.NotFound(err, "product", in.ProductID)
	}
	location := in.LocationID
	if location == 0 {
		var err error
		if location, err = s.location(ctx); err != nil {
			return nil, err
		}
	}
	q, err := s.quant(ctx, in.ProductID, location)
	if err != nil {
		return nil, err
	}
	want := q.Quantity.Decimal
	if in.Quantity != nil {
		want = decimal.NewFromFloat(*in.Quantity)
	} else {
		want = want.Add(decimal.NewFromFloat(*in.Delta))
	}
	after, clamped := s.target(in.ProductID, q.Quantity.Decimal, want)

	strategy, err := fallback.Do(ctx, s.deps.Chain("stock.adjust"),
		fallback.Step("apply_inventory", func(ctx context.Context) error {
			if err := erp.Write(ctx, s.deps.ERP, pos.ModelQuant, []int64{q.ID}, map[string]any{"inventory_quantity": after.InexactFloat64()}); err != nil {
				return err
			}
			if err := erp.Execute(ctx, s.deps.ERP, pos.ModelQuant, "action_apply_inventory", []int64{q.ID}, nil); err != nil {
				return err
			}
			applied, err := erp.Get[quantRecord](ctx, s.deps.ERP, pos.ModelQuant, q.ID, []string{"quantity"})
			if err != nil {
				return err
			}
			if !applied.Quantity.Equal(after) {
				return fmt.Errorf("quant %d holds %s after apply, want %s", q.ID, applied.Quantity, after)
			}
			return nil
		}),
		fallback.Step("direct_write", func(ctx context.Context) error {
			return erp.Write(ctx, s.deps.ERP, pos.ModelQuant, []int64{q.ID}, map[string]any{"quantity": after.InexactFloat64()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("adjust product %d: %w", in.ProductID, err)
	}
	s.deps.Record(ctx, "stock.adjust", pos.ModelProduct, in.ProductID, map[string]any{
		"before": q.Quantity.String(), "after": after.String(), "strategy": strategy,
	})
	return &AdjustResult{
		QuantAdjustment: QuantAdjustment{
			ProductID: in.ProductID, LocationID: location, QuantID: q.ID,
			Before: q.Quantity.Decimal, After: after, Clamped: clamped,
		},
		Strategy: strategy,
	}, nil
}
