package stock

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Strategy names reported in results.
const (
	StrategyOrderPicking = "order_picking"
	StrategyDirectQuant  = "direct_quant"
	StrategyAlreadyDone  = "already_done"
	StrategyNothingToDo  = "nothing_to_do"
)

// ErrOrderNotPaid rejects reconciliation of orders still in draft.
var ErrOrderNotPaid = fmt.Errorf("%w: order must be paid before stock is moved", shared.ErrConflict)

// QuantAdjustment is one quant write made outside a picking.
type QuantAdjustment struct {
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	QuantID    int64           `json:"quant_id"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Clamped    bool            `json:"clamped,omitempty"`
}

// Result describes how an order's stock was reconciled.
type Result struct {
	OrderID    int64             `json:"order_id"`
	Strategy   string            `json:"strategy"`
	PickingIDs []int64           `json:"picking_ids,omitempty"`
	Adjusted   []QuantAdjustment `json:"adjusted,omitempty"`
}

// AdjustInput sets (Quantity) or shifts (Delta) a product's stock.
type AdjustInput struct {
	ProductID  int64    `json:"product_id" validate:"required,gt=0"`
	LocationID int64    `json:"location_id" validate:"omitempty,gt=0"`
	Quantity   *float64 `json:"quantity" validate:"required_without=Delta,excluded_with=Delta"`
	Delta      *float64 `json:"delta" validate:"required_without=Quantity"`
}

// AdjustResult reports the quant change and the strategy that made it.
type AdjustResult struct {
	QuantAdjustment
	Strategy string `json:"strategy"`
}

type orderRecord struct {
	ID         int64    `json:"id"`
	Name       erp.Text `json:"name"`
	State      string   `json:"state"`
	LineIDs    []int64  `json:"lines"`
	PickingIDs []int64  `json:"picking_ids"`
}

var orderFields = []string{"name", "state", "lines", "picking_ids"}

type lineRecord struct {
	ID      int64        `json:"id"`
	Product erp.Many2One `json:"product_id"`
	Qty     erp.Number   `json:"qty"`
}

type productRecord struct {
	ID   int64    `json:"id"`
	Type erp.Text `json:"type"`
}

type pickingRecord struct {
	ID      int64   `json:"id"`
	State   string  `json:"state"`
	MoveIDs []int64 `json:"move_ids"`
}

type moveRecord struct {
	ID       int64      `json:"id"`
	Demand   erp.Number `json:"product_uom_qty"`
	Quantity erp.Number `json:"quantity"`
}

type quantRecord struct {
	ID                int64        `json:"id"`
	Product           erp.Many2One `json:"product_id"`
	Location          erp.Many2One `json:"location_id"`
	Quantity          erp.Number   `json:"quantity"`
	InventoryQuantity erp.Number   `json:"inventory_quantity"`
}

var quantFields = []string{"product_id", "location_id", "quantity", "inventory_quantity"}
