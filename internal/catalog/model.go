package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
)

// ERP models behind the catalog.
const (
	ModelTemplate = "product.template"
	ModelVariant  = "product.product"
	ModelValue    = "product.template.attribute.value"
)

// Product is a sellable article (an ERP product template).
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"default_code,omitempty"`
	Barcode       string          `json:"barcode,omitempty"`
	ListPrice     decimal.Decimal `json:"list_price"`
	StandardPrice decimal.Decimal `json:"standard_price"`
	Category      erp.Many2One    `json:"categ_id"`
	Type          string          `json:"type"`
	TaxIDs        []int64         `json:"taxes_id"`
	Active        bool            `json:"active"`
	QtyAvailable  decimal.Decimal `json:"qty_available"`
	VariantCount  int             `json:"variant_count"`
	Variants      []Variant       `json:"variants,omitempty"`
}

// Variant is a concrete size/colour of a product.
type Variant struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"default_code,omitempty"`
	Barcode      string          `json:"barcode,omitempty"`
	Price        decimal.Decimal `json:"lst_price"`
	QtyAvailable decimal.Decimal `json:"qty_available"`
	Attributes   []string        `json:"attributes,omitempty"`
}

type templateRecord struct {
	ID            int64        `json:"id"`
	Name          erp.Text     `json:"name"`
	SKU           erp.Text     `json:"default_code"`
	Barcode       erp.Text     `json:"barcode"`
	ListPrice     erp.Number   `json:"list_price"`
	StandardPrice erp.Number   `json:"standard_price"`
	Category      erp.Many2One `json:"categ_id"`
	Type          erp.Text     `json:"type"`
	TaxIDs        []int64      `json:"taxes_id"`
	Active        bool         `json:"active"`
	VariantIDs    []int64      `json:"product_variant_ids"`
}

var templateFields = []string{
	"name", "default_code", "barcode", "list_price", "standard_price", "categ_id", "type",
	"taxes_id", "active", "product_variant_ids",
}

type variantRecord struct {
	ID           int64        `json:"id"`
	DisplayName  erp.Text     `json:"display_name"`
	SKU          erp.Text     `json:"default_code"`
	Barcode      erp.Text     `json:"barcode"`
	Price        erp.Number   `json:"lst_price"`
	QtyAvailable erp.Number   `json:"qty_available"`
	Template     erp.Many2One `json:"product_tmpl_id"`
	ValueIDs     []int64      `json:"product_template_attribute_value_ids"`
}

var variantFields = []string{
	"display_name", "default_code", "barcode", "lst_price", "qty_available", "product_tmpl_id",
	"product_template_attribute_value_ids",
}

func (r templateRecord) toProduct() Product {
	return Product{
		ID:            r.ID,
		Name:          r.Name.String(),
		SKU:           r.SKU.String(),
		Barcode:       r.Barcode.String(),
		ListPrice:     r.ListPrice.Decimal,
		StandardPrice: r.StandardPrice.Decimal,
		Category:      r.Category,
		Type:          r.Type.String(),
		TaxIDs:        r.TaxIDs,
		Active:        r.Active,
		VariantCount:  len(r.VariantIDs),
	}
}
