package inventory

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Adjuster applies quant adjustments.
type Adjuster interface {
	Adjust(ctx context.Context, in stock.AdjustInput) (*stock.AdjustResult, error)
}

// Service reads stock levels from the ERP and routes adjustments through
// the stock reconciler.
type Service struct {
	deps     pos.Deps
	adjuster Adjuster
}

// NewService builds Service.
func NewService(deps pos.Deps, adjuster Adjuster) *Service {
	return &Service{deps: deps, adjuster: adjuster}
}

var internalQuants = erp.Where("location_id.usage", "=", "internal")

// Levels lists on-hand quantities per product at internal locations.
func (s *Service) Levels(ctx context.Context, f LevelFilter) ([]Level, shared.Pagination, error) {
	domain := internalQuants
	if len(f.ProductIDs) > 0 {
		domain = domain.And("product_id", "in", f.ProductIDs)
	}
	quants, err := erp.SearchRead[quantRecord](ctx, s.deps.ERP, pos.ModelQuant, domain, erp.SearchOptions{
		Fields: []string{"product_id", "location_id", "quantity"}, Order: "product_id, id",
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	levels := aggregate(quants)
	page := shared.NewPagination(f.Page, f.PerPage, len(levels))
	start := min(page.Offset(), len(levels))
	end := min(start+page.PerPage, len(levels))
	levels = levels[start:end]
	if err := s.attachSKUs(ctx, levels); err != nil {
		return nil, page, err
	}
	return levels, page, nil
}

func aggregate(quants []quantRecord) []Level {
	var levels []Level
	index := map[int64]int{}
	for _, q := range quants {
		i, ok := index[q.Product.ID]
		if !ok {
			i = len(levels)
			index[q.Product.ID] = i
			levels = append(levels, Level{ProductID: q.Product.ID, Product: q.Product.Name, Locations: []Balance{}})
		}
		levels[i].Qty = levels[i].Qty.Add(q.Quantity.Decimal)
		levels[i].Locations = append(levels[i].Locations, Balance{
			LocationID: q.Location.ID, Location: q.Location.Name, Qty: q.Quantity.Decimal,
		})
	}
	slices.SortFunc(levels, func(a, b Level) int { return int(a.ProductID - b.ProductID) })
	return levels
}

func (s *Service) attachSKUs(ctx context.Context, levels []Level) error {
	ids := make([]int64, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.ProductID)
	}
	products, err := erp.Read[productRecord](ctx, s.deps.ERP, pos.ModelProduct, ids, []string{"display_name", "default_code"})
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	byID := make(map[int64]productRecord, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for i := range levels {
		if p, ok := byID[levels[i].ProductID]; ok {
			levels[i].SKU = p.SKU.String()
			levels[i].Product = p.Name.String()
		}
	}
	return nil
}

// Detail returns the stock level of one product with its movement card.
func (s *Service) Detail(ctx context.Context, productID int64, f StockCardFilter) (*Detail, error) {
	product, err := erp.Get[productRecord](ctx, s.deps.ERP, pos.ModelProduct, productID, []string{"display_name", "default_code"})
	if err != nil {
		return nil, pos.NotFound(err, "product", productID)
	}
	quants, err := erp.SearchRead[quantRecord](ctx, s.deps.ERP, pos.ModelQuant,
		internalQuants.And("product_id", "=", productID),
		erp.SearchOptions{Fields: []string{"product_id", "location_id", "quantity"}, Order: "id"})
	if err != nil {
		return nil, err
	}
	d := &Detail{Level: Level{ProductID: productID, Product: product.Name.String(), SKU: product.SKU.String(), Locations: []Balance{}}}
	if levels := aggregate(quants); len(levels) == 1 {
		d.Level.Qty = levels[0].Qty
		d.Level.Locations = levels[0].Locations
	}
	f.ProductID = productID
	d.Card, err = s.StockCard(ctx, f, d.Level.Qty)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// StockCard lists done moves of a product oldest first. Balances are
// derived backwards from the current on-hand quantity.
func (s *Service) StockCard(ctx context.Context, f StockCardFilter, onHand decimal.Decimal) ([]StockCardEntry, error) {
	domain := erp.Where("product_id", "=", f.ProductID).And("state", "=", "done")
	if !f.From.IsZero() {
		domain = domain.And("date", ">=", erp.FormatTime(f.From))
	}
	if !f.To.IsZero() {
		domain = domain.And("date", "<=", erp.FormatTime(f.To))
	}
	limit := f.Limit
	if limit <= 0 || limit > shared.MaxPerPage {
		limit = 50
	}
	moves, err := erp.SearchRead[moveRecord](ctx, s.deps.ERP, pos.ModelMove, domain, erp.SearchOptions{
		Fields: []string{"date", "reference", "picking_id", "location_id", "location_dest_id", "quantity"},
		Order:  "date desc, id desc",
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	internal, err := s.internalLocations(ctx, moves)
	if err != nil {
		return nil, err
	}

	entries := make([]StockCardEntry, len(moves))
	balance := onHand
	for i, m := range moves {
		e := StockCardEntry{MoveID: m.ID, Reference: m.Reference.String(), Date: m.Date.Time, BalanceQty: balance}
		if e.Reference == "" {
			e.Reference = m.Picking.Name
		}
		from, to := internal[m.Location.ID], internal[m.LocationDest.ID]
		switch {
		case to && !from:
			e.QtyIn = m.Quantity.Decimal
			balance = balance.Sub(m.Quantity.Decimal)
		case from && !to:
			e.QtyOut = m.Quantity.Decimal
			balance = balance.Add(m.Quantity.Decimal)
		}
		entries[len(moves)-1-i] = e
	}
	return entries, nil
}

func (s *Service) internalLocations(ctx context.Context, moves []moveRecord) (map[int64]bool, error) {
	var ids []int64
	for _, m := range moves {
		ids = append(ids, m.Location.ID, m.LocationDest.ID)
	}
	slices.Sort(ids)
	ids = slices.DeleteFunc(slices.Compact(ids), func(id int64) bool { return id == 0 })
	out := map[int64]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	type location struct {
		ID    int64    `json:"id"`
		Usage erp.Text `json:"usage"`
	}
	locations, err := erp.Read[location](ctx, s.deps.ERP, pos.ModelLocation, ids, []string{"usage"})
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	for _, l := range locations {
		out[l.ID] = l.Usage == "internal"
	}
	return out, nil
}

// Adjust sets or shifts on-hand stock of a product.
func (s *Service) Adjust(ctx context.Context, in stock.AdjustInput) (*stock.AdjustResult, error) {
	if s.adjuster == nil {
		return nil, fmt.Errorf("%w: stock adjustments are disabled", shared.ErrValidation)
	}
	return s.adjuster.Adjust(ctx, in)
}
