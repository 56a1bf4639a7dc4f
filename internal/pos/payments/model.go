package payments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Method aliases accepted by Process.
const (
	MethodCash = "cash"
	MethodCard = "card"
)

// StrategyAlreadyRecorded reports a payment left by an earlier attempt.
const StrategyAlreadyRecorded = "already_recorded"

var (
	// ErrInsufficientPayment rejects tenders below the order total.
	ErrInsufficientPayment = fmt.Errorf("%w: insufficient payment", shared.ErrValidation)
	// ErrAlreadyPaid rejects payments on orders that left draft.
	ErrAlreadyPaid = fmt.Errorf("%w: order is not awaiting payment", shared.ErrConflict)
	// ErrUnknownMethod is returned when a method cannot be resolved.
	ErrUnknownMethod = fmt.Errorf("%w: unknown payment method", shared.ErrValidation)
)

// PaymentInput is the body of POST /pos/orders/{id}/payment.
type PaymentInput struct {
	OrderID        int64   `json:"-"`
	Method         string  `json:"method" validate:"required"`
	Amount         float64 `json:"amount" validate:"gt=0"`
	IdempotencyKey string  `json:"-"`
}

// Result summarises a processed payment.
type Result struct {
	OrderID      int64           `json:"order_id"`
	OrderName    string          `json:"order_name"`
	State        string          `json:"state"`
	AmountTotal  decimal.Decimal `json:"amount_total"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	ChangeAmount decimal.Decimal `json:"change_amount"`
	PaymentID    int64           `json:"payment_id"`
	Method       Method          `json:"method"`
	Strategies   Strategies      `json:"strategies"`
	Stock        *stock.Dispatch `json:"stock,omitempty"`
	StockError   string          `json:"stock_error,omitempty"`
}

// Strategies names the fallback strategy used at each step.
type Strategies struct {
	Record   string `json:"record"`
	MarkPaid string `json:"mark_paid"`
	Finalize string `json:"finalize,omitempty"`
}

// Method is a POS payment method with its resolved kind.
type Method struct {
	ID      int64        `json:"id"`
	Name    erp.Text     `json:"name"`
	IsCash  bool         `json:"is_cash_count"`
	Journal erp.Many2One `json:"journal_id"`
	Kind    string       `json:"kind"`
}

var methodFields = []string{"name", "is_cash_count", "journal_id"}

type orderRecord struct {
	ID          int64        `json:"id"`
	Name        erp.Text     `json:"name"`
	State       string       `json:"state"`
	Session     erp.Many2One `json:"session_id"`
	AmountTotal erp.Number   `json:"amount_total"`
	AmountPaid  erp.Number   `json:"amount_paid"`
}

var orderFields = []string{"name", "state", "session_id", "amount_total", "amount_paid"}
