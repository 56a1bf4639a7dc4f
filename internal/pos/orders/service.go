package orders

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/sessions"
	"github.com/modaboutique/backoffice/internal/shared"
)

// SessionSource yields the session new orders attach to.
type SessionSource interface {
	Active(ctx context.Context) (*sessions.Session, error)
}

// Service orchestrates POS orders on the ERP.
type Service struct {
	deps     pos.Deps
	sessions SessionSource
}

// NewService constructs the order orchestrator.
func NewService(deps pos.Deps, sessions SessionSource) *Service {
	return &Service{deps: deps, sessions: sessions}
}

// Get loads an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines(ctx, rec.LineIDs)
	if err != nil {
		return nil, err
	}
	return rec.toOrder(lines), nil
}

func (s *Service) record(ctx context.Context, id int64) (orderRecord, error) {
	rec, err := erp.Get[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, id, orderFields)
	if err != nil {
		return rec, pos.NotFound(err, "order", id)
	}
	return rec, nil
}

func (s *Service) lines(ctx context.Context, ids []int64) ([]Line, error) {
	records, err := erp.Read[lineRecord](ctx, s.deps.ERP, pos.ModelOrderLine, ids, lineFields)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.toLine())
	}
	slices.SortFunc(lines, func(a, b Line) int { return int(a.ID - b.ID) })
	return lines, nil
}

// List returns orders without their lines, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	var domain erp.Domain
	if f.State != "" {
		domain = domain.And("state", "=", f.State)
	}
	if f.SessionID > 0 {
		domain = domain.And("session_id", "=", f.SessionID)
	}
	limit := f.Limit
	if limit <= 0 || limit > shared.MaxPerPage {
		limit = 50
	}
	recs, err := erp.SearchRead[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, domain,
		erp.SearchOptions{Fields: orderFields, Order: "id desc", Limit: limit, Offset: f.Offset})
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *rec.toOrder(nil))
	}
	return out, nil
}

// Create creates a draft order in the active session. Line prices default
// to the product list price. The ERP's total is authoritative; a client
// total differing by more than a cent is logged and returned alongside.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	for i, l := range in.Lines {
		if l.ProductID <= 0 {
			return nil, fmt.Errorf("%w: line %d has no product_id", shared.ErrValidation, i+1)
		}
	}
	sess, err := s.sessions.Active(ctx)
	if err != nil {
		return nil, err
	}

	prepared, err := s.prepare(ctx, in.Lines)
	if err != nil {
		return nil, err
	}
	commands := make([]any, 0, len(prepared))
	total, tax := decimal.Zero, decimal.Zero
	for _, p := range prepared {
		commands = append(commands, erp.CmdCreate(p.values()))
		total = total.Add(p.subtotalIncl)
		tax = tax.Add(p.subtotalIncl.Sub(p.subtotal))
	}

	values := map[string]any{
		"session_id":    sess.ID,
		"lines":         commands,
		"amount_total":  total.InexactFloat64(),
		"amount_tax":    tax.InexactFloat64(),
		"amount_paid":   0,
		"amount_return": 0,
	}
	if in.PartnerID != nil {
		values["partner_id"] = *in.PartnerID
	}
	if in.Note != "" {
		values["note"] = in.Note
	}
	id, err := erp.Create(ctx, s.deps.ERP, pos.ModelOrder, values)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	order.ClientTotal = &total
	if order.AmountTotal.Sub(total).Abs().GreaterThan(Tolerance) {
		s.deps.Log().WarnContext(ctx, "erp order total differs from client total",
			slog.Int64("order_id", id),
			slog.String("client_total", total.StringFixed(2)),
			slog.String("erp_total", order.AmountTotal.StringFixed(2)))
	}
	s.deps.Record(ctx, "order.create", pos.ModelOrder, id, map[string]any{"total": order.AmountTotal.StringFixed(2)})
	return order, nil
}

type preparedLine struct {
	productID    int64
	name         string
	qty          decimal.Decimal
	price        decimal.Decimal
	discount     decimal.Decimal
	taxIDs       []int64
	subtotal     decimal.Decimal
	subtotalIncl decimal.Decimal
}

func (p preparedLine) values() map[string]any {
	return map[string]any{
		"product_id":          p.productID,
		"full_product_name":   p.name,
		"qty":                 p.qty.InexactFloat64(),
		"price_unit":          p.price.InexactFloat64(),
		"discount":            p.discount.InexactFloat64(),
		"tax_ids":             []any{erp.CmdSet(p.taxIDs)},
		"price_subtotal":      p.subtotal.InexactFloat64(),
		"price_subtotal_incl": p.subtotalIncl.InexactFloat64(),
	}
}

// prepare resolves products, default prices and taxes for new lines.
func (s *Service) prepare(ctx context.Context, inputs []LineInput) ([]preparedLine, error) {
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		if !slices.Contains(ids, in.ProductID) {
			ids = append(ids, in.ProductID)
		}
	}
	products, err := erp.SearchRead[productRecord](ctx, s.deps.ERP, pos.ModelProduct,
		erp.Where("id", "in", ids), erp.SearchOptions{Fields: productFields})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[int64]productRecord, len(products))
	var taxIDs []int64
	for _, p := range products {
		byID[p.ID] = p
		taxIDs = append(taxIDs, p.TaxIDs...)
	}
	rates, err := s.taxRates(ctx, taxIDs)
	if err != nil {
		return nil, err
	}

	out := make([]preparedLine, 0, len(inputs))
	for _, in := range inputs {
		product, ok := byID[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d does not exist", shared.ErrValidation, in.ProductID)
		}
		p := preparedLine{
			productID: product.ID,
			name:      product.Name.String(),
			qty:       decimal.NewFromInt(1),
			price:     product.ListPrice.Decimal,
			discount:  ClampDiscount(decimal.NewFromFloat(in.Discount)),
			taxIDs:    product.TaxIDs,
		}
		if in.Qty != nil {
			p.qty = decimal.NewFromFloat(*in.Qty)
		}
		if in.PriceUnit != nil {
			p.price = decimal.NewFromFloat(*in.PriceUnit)
		}
		p.subtotal, p.subtotalIncl = LineTotals(p.qty, p.price, p.discount, ratesFor(rates, p.taxIDs))
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) taxRates(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	rates := map[int64]decimal.Decimal{}
	if len(ids) == 0 {
		return rates, nil
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	taxes, err := erp.Read[taxRecord](ctx, s.deps.ERP, pos.ModelTax, ids, []string{"amount", "amount_type"})
	if err != nil {
		return nil, fmt.Errorf("load taxes: %w", err)
	}
	for _, t := range taxes {
		if t.AmountType == "percent" {
			rates[t.ID] = t.Amount.Decimal
		}
	}
	return rates, nil
}

func ratesFor(rates map[int64]decimal.Decimal, ids []int64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(ids))
	for _, id := range ids {
		if r, ok := rates[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// mutate runs fn on a draft order under the order lock, then rewrites the
// order totals and returns the refreshed order.
func (s *Service) mutate(ctx context.Context, orderID int64, action string, fn func(ctx context.Context, order *Order) error) (*Order, error) {
	err := s.deps.Locker.WithLock(ctx, shared.OrderLockKey(orderID), func(ctx context.Context) error {
		order, err := s.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Editable() {
			return fmt.Errorf("%w: order %d is %s", ErrOrderNotEditable, orderID, order.State)
		}
		if err := fn(ctx, order); err != nil {
			return err
		}
		return s.rewriteTotals(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	s.deps.Record(ctx, action, pos.ModelOrder, orderID, nil)
	return s.Get(ctx, orderID)
}

// AddLine appends a line to a draft order.
func (s *Service) AddLine(ctx context.Context, orderID int64, in LineInput) (*Order, error) {
	return s.mutate(ctx, orderID, "order.add_line", func(ctx context.Context, _ *Order) error {
		prepared, err := s.prepare(ctx, []LineInput{in})
		if err != nil {
			return err
		}
		return erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{orderID}, map[string]any{
			"lines": []any{erp.CmdCreate(prepared[0].values())},
		})
	})
}

// RemoveLine deletes a line from a draft order.
func (s *Service) RemoveLine(ctx context.Context, orderID, lineID int64) (*Order, error) {
	return s.mutate(ctx, orderID, "order.remove_line", func(ctx context.Context, order *Order) error {
		if !slices.ContainsFunc(order.Lines, func(l Line) bool { return l.ID == lineID }) {
			return fmt.Errorf("%w: line %d is not part of order %d", shared.ErrNotFound, lineID, orderID)
		}
		return erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{orderID}, map[string]any{
			"lines": []any{erp.CmdDelete(lineID)},
		})
	})
}

// ApplyDiscount sets a percentage discount, or converts a fixed amount into
// per-line percentages. Without a target line a fixed amount is split evenly.
func (s *Service) ApplyDiscount(ctx context.Context, orderID int64, in DiscountInput) (*Order, error) {
	if in.Type != DiscountPercentage && in.Type != DiscountFixed {
		return nil, fmt.Errorf("%w: discount type must be percentage or fixed", shared.ErrValidation)
	}
	if in.Value < 0 {
		return nil, fmt.Errorf("%w: discount value must not be negative", shared.ErrValidation)
	}
	return s.mutate(ctx, orderID, "order.discount", func(ctx context.Context, order *Order) error {
		targets := order.Lines
		if in.LineID != nil {
			idx := slices.IndexFunc(order.Lines, func(l Line) bool { return l.ID == *in.LineID })
			if idx < 0 {
				return fmt.Errorf("%w: line %d is not part of order %d", shared.ErrNotFound, *in.LineID, orderID)
			}
			targets = order.Lines[idx : idx+1]
		}
		if len(targets) == 0 {
			return fmt.Errorf("%w: order %d has no lines", shared.ErrValidation, orderID)
		}

		value := decimal.NewFromFloat(in.Value)
		pcts := make([]decimal.Decimal, len(targets))
		switch in.Type {
		case DiscountPercentage:
			for i := range targets {
				pcts[i] = ClampDiscount(value)
			}
		case DiscountFixed:
			shares := SplitEven(value, len(targets))
			for i, l := range targets {
				pcts[i] = FixedToPercent(shares[i], l.Gross())
			}
		}

		var taxIDs []int64
		for _, l := range targets {
			taxIDs = append(taxIDs, l.TaxIDs...)
		}
		rates, err := s.taxRates(ctx, taxIDs)
		if err != nil {
			return err
		}
		commands := make([]any, 0, len(targets))
		for i, l := range targets {
			sub, incl := LineTotals(l.Qty, l.PriceUnit, pcts[i], ratesFor(rates, l.TaxIDs))
			commands = append(commands, erp.CmdUpdate(l.ID, map[string]any{
				"discount":            pcts[i].InexactFloat64(),
				"price_subtotal":      sub.InexactFloat64(),
				"price_subtotal_incl": incl.InexactFloat64(),
			}))
		}
		return erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{orderID}, map[string]any{"lines": commands})
	})
}

// rewriteTotals recomputes the order totals from its current lines.
func (s *Service) rewriteTotals(ctx context.Context, orderID int64) error {
	rec, err := s.record(ctx, orderID)
	if err != nil {
		return err
	}
	lines, err := s.lines(ctx, rec.LineIDs)
	if err != nil {
		return err
	}
	var taxIDs []int64
	for _, l := range lines {
		taxIDs = append(taxIDs, l.TaxIDs...)
	}
	rates, err := s.taxRates(ctx, taxIDs)
	if err != nil {
		return err
	}
	total, untaxed := decimal.Zero, decimal.Zero
	for _, l := range lines {
		sub, incl := LineTotals(l.Qty, l.PriceUnit, l.Discount, ratesFor(rates, l.TaxIDs))
		total = total.Add(incl)
		untaxed = untaxed.Add(sub)
	}
	return erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{orderID}, map[string]any{
		"amount_total": total.InexactFloat64(),
		"amount_tax":   total.Sub(untaxed).InexactFloat64(),
	})
}
