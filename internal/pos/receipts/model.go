package receipts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
)

// Receipt is the printable view of a paid order.
type Receipt struct {
	Company   Company         `json:"company"`
	OrderID   int64           `json:"order_id"`
	OrderName string          `json:"order_name"`
	State     string          `json:"state"`
	Session   string          `json:"session"`
	Cashier   string          `json:"cashier"`
	Customer  string          `json:"customer,omitempty"`
	Date      time.Time       `json:"date"`
	PrintedAt time.Time       `json:"printed_at"`
	Items     []Item          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Discount  decimal.Decimal `json:"discount"`
	Paid      decimal.Decimal `json:"paid"`
	Change    decimal.Decimal `json:"change"`
	Payments  []Payment       `json:"payments"`
	Note      string          `json:"note,omitempty"`
}

// Company is the header block of a receipt.
type Company struct {
	Name     string `json:"name"`
	VAT      string `json:"vat,omitempty"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Currency string `json:"currency"`
}

// Item is one printed line.
type Item struct {
	Name          string          `json:"name"`
	Qty           decimal.Decimal `json:"qty"`
	PriceUnit     decimal.Decimal `json:"price_unit"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountLabel string          `json:"discount_label,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
}

// Payment is one tender printed at the bottom.
type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderData is the ERP shape of the order a receipt is built from.
type OrderData struct {
	ID           int64        `json:"id"`
	Name         erp.Text     `json:"name"`
	State        string       `json:"state"`
	Session      erp.Many2One `json:"session_id"`
	User         erp.Many2One `json:"user_id"`
	Partner      erp.Many2One `json:"partner_id"`
	Company      erp.Many2One `json:"company_id"`
	DateOrder    erp.Time     `json:"date_order"`
	Note         erp.Text     `json:"note"`
	AmountTotal  erp.Number   `json:"amount_total"`
	AmountTax    erp.Number   `json:"amount_tax"`
	AmountPaid   erp.Number   `json:"amount_paid"`
	AmountReturn erp.Number   `json:"amount_return"`
	LineIDs      []int64      `json:"lines"`
	PaymentIDs   []int64      `json:"payment_ids"`
}

var orderFields = []string{
	"name", "state", "session_id", "user_id", "partner_id", "company_id", "date_order", "note",
	"amount_total", "amount_tax", "amount_paid", "amount_return", "lines", "payment_ids",
}

// LineData is the ERP shape of an order line.
type LineData struct {
	ID                int64        `json:"id"`
	Product           erp.Many2One `json:"product_id"`
	Description       erp.Text     `json:"full_product_name"`
	Qty               erp.Number   `json:"qty"`
	PriceUnit         erp.Number   `json:"price_unit"`
	Discount          erp.Number   `json:"discount"`
	PriceSubtotal     erp.Number   `json:"price_subtotal"`
	PriceSubtotalIncl erp.Number   `json:"price_subtotal_incl"`
}

var lineFields = []string{
	"product_id", "full_product_name", "qty", "price_unit", "discount", "price_subtotal", "price_subtotal_incl",
}

// PaymentData is the ERP shape of a pos.payment.
type PaymentData struct {
	ID     int64        `json:"id"`
	Method erp.Many2One `json:"payment_method_id"`
	Amount erp.Number   `json:"amount"`
}

var paymentFields = []string{"payment_method_id", "amount"}

// CompanyData is the ERP shape of res.company.
type CompanyData struct {
	ID       int64        `json:"id"`
	Name     erp.Text     `json:"name"`
	VAT      erp.Text     `json:"vat"`
	Street   erp.Text     `json:"street"`
	City     erp.Text     `json:"city"`
	Zip      erp.Text     `json:"zip"`
	Phone    erp.Text     `json:"phone"`
	Email    erp.Text     `json:"email"`
	Currency erp.Many2One `json:"currency_id"`
	// Symbol is filled from res.currency.
	Symbol string `json:"-"`
}

var companyFields = []string{"name", "vat", "street", "city", "zip", "phone", "email", "currency_id"}
