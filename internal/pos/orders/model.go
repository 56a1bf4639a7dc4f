package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/shared"
)

// State is the lifecycle state of a POS order.
type State string

const (
	StateDraft    State = "draft"
	StatePaid     State = "paid"
	StateDone     State = "done"
	StateInvoiced State = "invoiced"
	StateCancel   State = "cancel"
)

// ErrOrderNotEditable is returned when mutating an order that left draft.
var ErrOrderNotEditable = fmt.Errorf("%w: order is not in draft", shared.ErrConflict)

// Order is a POS order with its lines.
type Order struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	State        State           `json:"state"`
	Session      erp.Many2One    `json:"session_id"`
	Partner      erp.Many2One    `json:"partner_id"`
	User         erp.Many2One    `json:"user_id"`
	DateOrder    erp.Time        `json:"date_order"`
	Note         string          `json:"note,omitempty"`
	AmountTotal  decimal.Decimal `json:"amount_total"`
	AmountTax    decimal.Decimal `json:"amount_tax"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	AmountReturn decimal.Decimal `json:"amount_return"`
	// ClientTotal is the total computed locally when it was computed.
	ClientTotal *decimal.Decimal `json:"client_total,omitempty"`
	Lines       []Line           `json:"lines"`
	PaymentIDs  []int64          `json:"payment_ids,omitempty"`
	PickingIDs  []int64          `json:"picking_ids,omitempty"`
}

// Editable reports whether lines and discounts may change.
func (o *Order) Editable() bool { return o.State == StateDraft }

// Line is one product row of an order.
type Line struct {
	ID                int64           `json:"id"`
	Product           erp.Many2One    `json:"product_id"`
	Description       erp.Text        `json:"full_product_name"`
	Qty               decimal.Decimal `json:"qty"`
	PriceUnit         decimal.Decimal `json:"price_unit"`
	Discount          decimal.Decimal `json:"discount"`
	TaxIDs            []int64         `json:"tax_ids"`
	PriceSubtotal     decimal.Decimal `json:"price_subtotal"`
	PriceSubtotalIncl decimal.Decimal `json:"price_subtotal_incl"`
}

// Gross is qty × unit price before discount.
func (l Line) Gross() decimal.Decimal { return l.Qty.Mul(l.PriceUnit) }

// orderRecord is the ERP shape of pos.order.
type orderRecord struct {
	ID           int64        `json:"id"`
	Name         erp.Text     `json:"name"`
	State        State        `json:"state"`
	Session      erp.Many2One `json:"session_id"`
	Partner      erp.Many2One `json:"partner_id"`
	User         erp.Many2One `json:"user_id"`
	DateOrder    erp.Time     `json:"date_order"`
	Note         erp.Text     `json:"note"`
	AmountTotal  erp.Number   `json:"amount_total"`
	AmountTax    erp.Number   `json:"amount_tax"`
	AmountPaid   erp.Number   `json:"amount_paid"`
	AmountReturn erp.Number   `json:"amount_return"`
	LineIDs      []int64      `json:"lines"`
	PaymentIDs   []int64      `json:"payment_ids"`
	PickingIDs   []int64      `json:"picking_ids"`
}

var orderFields = []string{
	"name", "state", "session_id", "partner_id", "user_id", "date_order", "note",
	"amount_total", "amount_tax", "amount_paid", "amount_return", "lines", "payment_ids", "picking_ids",
}

type lineRecord struct {
	ID                int64        `json:"id"`
	Product           erp.Many2One `json:"product_id"`
	Description       erp.Text     `json:"full_product_name"`
	Qty               erp.Number   `json:"qty"`
	PriceUnit         erp.Number   `json:"price_unit"`
	Discount          erp.Number   `json:"discount"`
	TaxIDs            []int64      `json:"tax_ids"`
	PriceSubtotal     erp.Number   `json:"price_subtotal"`
	PriceSubtotalIncl erp.Number   `json:"price_subtotal_incl"`
}

func (r lineRecord) toLine() Line {
	return Line{
		ID:                r.ID,
		Product:           r.Product,
		Description:       r.Description,
		Qty:               r.Qty.Decimal,
		PriceUnit:         r.PriceUnit.Decimal,
		Discount:          r.Discount.Decimal,
		TaxIDs:            r.TaxIDs,
		PriceSubtotal:     r.PriceSubtotal.Decimal,
		PriceSubtotalIncl: r.PriceSubtotalIncl.Decimal,
	}
}

var lineFields = []string{
	"product_id", "full_product_name", "qty", "price_unit", "discount", "tax_ids",
	"price_subtotal", "price_subtotal_incl",
}

func (r orderRecord) toOrder(lines []Line) *Order {
	if lines == nil {
		lines = []Line{}
	}
	return &Order{
		ID:           r.ID,
		Name:         r.Name.String(),
		State:        r.State,
		Session:      r.Session,
		Partner:      r.Partner,
		User:         r.User,
		DateOrder:    r.DateOrder,
		Note:         r.Note.String(),
		AmountTotal:  r.AmountTotal.Decimal,
		AmountTax:    r.AmountTax.Decimal,
		AmountPaid:   r.AmountPaid.Decimal,
		AmountReturn: r.AmountReturn.Decimal,
		Lines:        lines,
		PaymentIDs:   r.PaymentIDs,
		PickingIDs:   r.PickingIDs,
	}
}

type productRecord struct {
	ID        int64      `json:"id"`
	Name      erp.Text   `json:"display_name"`
	ListPrice erp.Number `json:"lst_price"`
	TaxIDs    []int64    `json:"taxes_id"`
	Active    bool       `json:"active"`
}

var productFields = []string{"display_name", "lst_price", "taxes_id", "active"}

type taxRecord struct {
	ID         int64      `json:"id"`
	Amount     erp.Number `json:"amount"`
	AmountType erp.Text   `json:"amount_type"`
}
