package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
)

// Balance is the quantity of a product at one internal location.
type Balance struct {
	LocationID int64           `json:"location_id"`
	Location   string          `json:"location"`
	Qty        decimal.Decimal `json:"qty"`
}

// Level summarises on-hand stock of a product across internal locations.
type Level struct {
	ProductID int64           `json:"product_id"`
	Product   string          `json:"product"`
	SKU       string          `json:"default_code,omitempty"`
	Qty       decimal.Decimal `json:"qty"`
	Locations []Balance       `json:"locations"`
}

// StockCardEntry is one completed movement of a product.
type StockCardEntry struct {
	MoveID     int64           `json:"move_id"`
	Reference  string          `json:"reference"`
	Date       time.Time       `json:"date"`
	QtyIn      decimal.Decimal `json:"qty_in"`
	QtyOut     decimal.Decimal `json:"qty_out"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
}

// Detail is the stock view of a single product.
type Detail struct {
	Level
	Card []StockCardEntry `json:"card"`
}

// LevelFilter narrows stock listings.
type LevelFilter struct {
	ProductIDs []int64
	Page       int
	PerPage    int
}

// StockCardFilter bounds the movement history.
type StockCardFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

type quantRecord struct {
	ID       int64        `json:"id"`
	Product  erp.Many2One `json:"product_id"`
	Location erp.Many2One `json:"location_id"`
	Quantity erp.Number   `json:"quantity"`
}

type moveRecord struct {
	ID           int64        `json:"id"`
	Date         erp.Time     `json:"date"`
	Reference    erp.Text     `json:"reference"`
	Picking      erp.Many2One `json:"picking_id"`
	Location     erp.Many2One `json:"location_id"`
	LocationDest erp.Many2One `json:"location_dest_id"`
	Quantity     erp.Number   `json:"quantity"`
}

type productRecord struct {
	ID   int64    `json:"id"`
	Name erp.Text `json:"display_name"`
	SKU  erp.Text `json:"default_code"`
}
