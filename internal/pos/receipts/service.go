package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/pos"
)

// Service loads orders from the ERP and renders their receipts.
type Service struct {
	deps      pos.Deps
	renderer  *Renderer
	converter Converter
	now       func() time.Time
}

// NewService constructs the receipt service; converter may be nil.
func NewService(deps pos.Deps, renderer *Renderer, converter Converter) *Service {
	return &Service{deps: deps, renderer: renderer, converter: converter, now: time.Now}
}

// Receipt builds the receipt view of an order, fetching its lines,
// payments and company concurrently.
func (s *Service) Receipt(ctx context.Context, orderID int64) (*Receipt, error) {
	order, err := erp.Get[OrderData](ctx, s.deps.ERP, pos.ModelOrder, orderID, orderFields)
	if err != nil {
		return nil, pos.NotFound(err, "order", orderID)
	}

	var (
		lines    []LineData
		payments []PaymentData
		company  CompanyData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = erp.Read[LineData](gctx, s.deps.ERP, pos.ModelOrderLine, order.LineIDs, lineFields)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = erp.Read[PaymentData](gctx, s.deps.ERP, pos.ModelPayment, order.PaymentIDs, paymentFields)
		return err
	})
	g.Go(func() error {
		var err error
		company, err = s.company(gctx, order.Company)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load receipt for order %d: %w", orderID, err)
	}
	r := Build(order, lines, payments, company, s.now())
	return &r, nil
}

func (s *Service) company(ctx context.Context, ref erp.Many2One) (CompanyData, error) {
	var (
		company CompanyData
		err     error
	)
	if ref.Valid() {
		company, err = erp.Get[CompanyData](ctx, s.deps.ERP, pos.ModelCompany, ref.ID, companyFields)
	} else {
		var ok bool
		company, ok, err = erp.First[CompanyData](ctx, s.deps.ERP, pos.ModelCompany, nil,
			erp.SearchOptions{Fields: companyFields, Order: "id", Limit: 1})
		if err == nil && !ok {
			return company, errors.New("no company configured")
		}
	}
	if err != nil {
		return company, err
	}
	if company.Currency.Valid() {
		type currency struct {
			Symbol erp.Text `json:"symbol"`
		}
		cur, err := erp.Get[currency](ctx, s.deps.ERP, pos.ModelCurrency, company.Currency.ID, []string{"symbol"})
		if err != nil {
			return company, err
		}
		company.Symbol = cur.Symbol.String()
	}
	return company, nil
}

// HTML renders the receipt page of an order.
func (s *Service) HTML(ctx context.Context, orderID int64) ([]byte, error) {
	r, err := s.Receipt(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.renderer.HTML(*r)
}

// PDF renders the receipt as PDF and names the renderer that produced it.
func (s *Service) PDF(ctx context.Context, orderID int64) ([]byte, string, error) {
	r, err := s.Receipt(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	return s.renderer.PDF(ctx, s.deps.Chain("receipt.pdf"), s.converter, *r)
}
