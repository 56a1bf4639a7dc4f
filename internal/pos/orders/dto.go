package orders

// LineInput describes a line to add. Qty defaults to 1 and the unit price to
// the product's list price.
type LineInput struct {
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Qty       *float64 `json:"qty" validate:"omitempty,gt=0"`
	PriceUnit *float64 `json:"price_unit" validate:"omitempty,gte=0"`
	Discount  float64  `json:"discount"`
}

// CreateOrderInput is the body of POST /pos/orders.
type CreateOrderInput struct {
	Lines     []LineInput `json:"lines" validate:"required,min=1,dive"`
	PartnerID *int64      `json:"partner_id" validate:"omitempty,gt=0"`
	Note      string      `json:"note" validate:"max=500"`
}

// Discount kinds.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// DiscountInput is the body of POST /pos/orders/{id}/discount.
type DiscountInput struct {
	Type   string  `json:"type" validate:"required,oneof=percentage fixed"`
	Value  float64 `json:"value" validate:"gte=0"`
	LineID *int64  `json:"line_id" validate:"omitempty,gt=0"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	State     string
	SessionID int64
	Limit     int
	Offset    int
}
