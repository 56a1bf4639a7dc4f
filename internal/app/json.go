package app

import "github.com/shopspring/decimal"

// Money is rendered as JSON numbers for POS clients.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
