package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Service proxies the product catalog held by the ERP.
type Service struct {
	deps pos.Deps
}

// NewService constructs the catalog proxy.
func NewService(deps pos.Deps) *Service {
	return &Service{deps: deps}
}

func (f ListFilter) domain() erp.Domain {
	var d erp.Domain
	if !f.IncludeArchived {
		d = d.And("active", "=", true)
	}
	if f.CategoryID > 0 {
		d = d.And("categ_id", "child_of", f.CategoryID)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		d = append(d, erp.Or(
			erp.Where("name", "ilike", q),
			erp.Where("default_code", "ilike", q),
			erp.Where("barcode", "ilike", q),
		)...)
	}
	return d
}

// List searches products by name, SKU or barcode.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Product, shared.Pagination, error) {
	domain := f.domain()
	total, err := erp.SearchCount(ctx, s.deps.ERP, ModelTemplate, domain)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(f.Page, f.PerPage, total)
	records, err := erp.SearchRead[templateRecord](ctx, s.deps.ERP, ModelTemplate, domain, erp.SearchOptions{
		Fields: templateFields, Order: "name, id", Limit: page.PerPage, Offset: page.Offset(),
	})
	if err != nil {
		return nil, page, err
	}
	products := make([]Product, 0, len(records))
	var templateIDs []int64
	for _, r := range records {
		products = append(products, r.toProduct())
		templateIDs = append(templateIDs, r.ID)
	}
	if len(templateIDs) > 0 {
		variants, err := erp.SearchRead[variantRecord](ctx, s.deps.ERP, ModelVariant,
			erp.Where("product_tmpl_id", "in", templateIDs), erp.SearchOptions{Fields: []string{"product_tmpl_id", "qty_available"}})
		if err != nil {
			return nil, page, fmt.Errorf("load variant stock: %w", err)
		}
		stock := map[int64]decimal.Decimal{}
		for _, v := range variants {
			stock[v.Template.ID] = stock[v.Template.ID].Add(v.QtyAvailable.Decimal)
		}
		for i := range products {
			products[i].QtyAvailable = stock[products[i].ID]
		}
	}
	return products, page, nil
}

// Get loads a product with its variants.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	record, err := erp.Get[templateRecord](ctx, s.deps.ERP, ModelTemplate, id, templateFields)
	if err != nil {
		return nil, pos.NotFound(err, "product", id)
	}
	p := record.toProduct()
	p.Variants, err = s.variants(ctx, id)
	if err != nil {
		return nil, err
	}
	p.VariantCount = len(p.Variants)
	for _, v := range p.Variants {
		p.QtyAvailable = p.QtyAvailable.Add(v.QtyAvailable)
	}
	return &p, nil
}

// Variants lists the variants of a product.
func (s *Service) Variants(ctx context.Context, id int64) ([]Variant, error) {
	if _, err := erp.Get[templateRecord](ctx, s.deps.ERP, ModelTemplate, id, []string{"name"}); err != nil {
		return nil, pos.NotFound(err, "product", id)
	}
	return s.variants(ctx, id)
}

func (s *Service) variants(ctx context.Context, templateID int64) ([]Variant, error) {
	records, err := erp.SearchRead[variantRecord](ctx, s.deps.ERP, ModelVariant,
		erp.Where("product_tmpl_id", "=", templateID), erp.SearchOptions{Fields: variantFields, Order: "id"})
	if err != nil {
		return nil, err
	}
	var valueIDs []int64
	for _, r := range records {
		valueIDs = append(valueIDs, r.ValueIDs...)
	}
	names := map[int64]string{}
	if len(valueIDs) > 0 {
		slices.Sort(valueIDs)
		type value struct {
			ID   int64    `json:"id"`
			Name erp.Text `json:"name"`
		}
		values, err := erp.Read[value](ctx, s.deps.ERP, ModelValue, slices.Compact(valueIDs), []string{"name"})
		if err != nil {
			return nil, fmt.Errorf("load attribute values: %w", err)
		}
		for _, v := range values {
			names[v.ID] = v.Name.String()
		}
	}
	out := make([]Variant, 0, len(records))
	for _, r := range records {
		v := Variant{
			ID:           r.ID,
			Name:         r.DisplayName.String(),
			SKU:          r.SKU.String(),
			Barcode:      r.Barcode.String(),
			Price:        r.Price.Decimal,
			QtyAvailable: r.QtyAvailable.Decimal,
		}
		for _, id := range r.ValueIDs {
			if n, ok := names[id]; ok {
				v.Attributes = append(v.Attributes, n)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	id, err := erp.Create(ctx, s.deps.ERP, ModelTemplate, in.values())
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.deps.Record(ctx, "product.create", ModelTemplate, id, map[string]any{"name": in.Name})
	return s.Get(ctx, id)
}

// Update applies the provided fields to a product.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Product, error) {
	values := in.values()
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}
	if err := erp.Write(ctx, s.deps.ERP, ModelTemplate, []int64{id}, values); err != nil {
		return nil, pos.NotFound(err, "product", id)
	}
	s.deps.Record(ctx, "product.update", ModelTemplate, id, values)
	return s.Get(ctx, id)
}

// Delete archives a product, unlinking it only when archiving fails.
func (s *Service) Delete(ctx context.Context, id int64) (string, error) {
	if _, err := erp.Get[templateRecord](ctx, s.deps.ERP, ModelTemplate, id, []string{"name"}); err != nil {
		return "", pos.NotFound(err, "product", id)
	}
	strategy, err := fallback.Do(ctx, s.deps.Chain("product.delete"),
		fallback.Step("archive", func(ctx context.Context) error {
			return erp.Write(ctx, s.deps.ERP, ModelTemplate, []int64{id}, map[string]any{"active": false})
		}),
		fallback.Step("unlink", func(ctx context.Context) error {
			return erp.Unlink(ctx, s.deps.ERP, ModelTemplate, []int64{id})
		}),
	)
	if err != nil {
		return "", fmt.Errorf("delete product %d: %w", id, err)
	}
	s.deps.Log().InfoContext(ctx, "product removed", slog.Int64("product_id", id), slog.String("strategy", strategy))
	s.deps.Record(ctx, "product.delete", ModelTemplate, id, map[string]any{"strategy": strategy})
	return strategy, nil
}
