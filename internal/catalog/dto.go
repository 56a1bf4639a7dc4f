package catalog

import "github.com/modaboutique/backoffice/internal/erp"

// ListFilter narrows product listings.
type ListFilter struct {
	Search          string
	CategoryID      int64
	IncludeArchived bool
	Page            int
	PerPage         int
}

// CreateInput is the body of POST /productos.
type CreateInput struct {
	Name          string  `json:"name" validate:"required,max=200"`
	SKU           string  `json:"default_code" validate:"max=64"`
	Barcode       string  `json:"barcode" validate:"omitempty,numeric,min=8,max=14"`
	ListPrice     float64 `json:"list_price" validate:"gte=0"`
	StandardPrice float64 `json:"standard_price" validate:"gte=0"`
	CategoryID    int64   `json:"categ_id" validate:"omitempty,gt=0"`
	Type          string  `json:"type" validate:"omitempty,oneof=consu service product combo"`
	TaxIDs        []int64 `json:"taxes_id" validate:"omitempty,dive,gt=0"`
}

// UpdateInput is the body of PUT /productos/{id}; nil fields are left alone.
type UpdateInput struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	SKU           *string  `json:"default_code" validate:"omitempty,max=64"`
	Barcode       *string  `json:"barcode" validate:"omitempty,numeric,min=8,max=14"`
	ListPrice     *float64 `json:"list_price" validate:"omitempty,gte=0"`
	StandardPrice *float64 `json:"standard_price" validate:"omitempty,gte=0"`
	CategoryID    *int64   `json:"categ_id" validate:"omitempty,gt=0"`
	Active        *bool    `json:"active"`
	TaxIDs        []int64  `json:"taxes_id" validate:"omitempty,dive,gt=0"`
}

func (in CreateInput) values() map[string]any {
	v := map[string]any{
		"name":           in.Name,
		"list_price":     in.ListPrice,
		"standard_price": in.StandardPrice,
	}
	if in.SKU != "" {
		v["default_code"] = in.SKU
	}
	if in.Barcode != "" {
		v["barcode"] = in.Barcode
	}
	if in.CategoryID > 0 {
		v["categ_id"] = in.CategoryID
	}
	if in.Type != "" {
		v["type"] = in.Type
	}
	if in.TaxIDs != nil {
		v["taxes_id"] = []any{erp.CmdSet(in.TaxIDs)}
	}
	return v
}

func (in UpdateInput) values() map[string]any {
	v := map[string]any{}
	if in.Name != nil {
		v["name"] = *in.Name
	}
	if in.SKU != nil {
		v["default_code"] = *in.SKU
	}
	if in.Barcode != nil {
		v["barcode"] = *in.Barcode
	}
	if in.ListPrice != nil {
		v["list_price"] = *in.ListPrice
	}
	if in.StandardPrice != nil {
		v["standard_price"] = *in.StandardPrice
	}
	if in.CategoryID != nil {
		v["categ_id"] = *in.CategoryID
	}
	if in.Active != nil {
		v["active"] = *in.Active
	}
	if in.TaxIDs != nil {
		v["taxes_id"] = []any{erp.CmdSet(in.TaxIDs)}
	}
	return v
}
