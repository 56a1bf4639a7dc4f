package orders

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	// Tolerance is the largest client/ERP total difference accepted silently.
	Tolerance = decimal.New(1, -2)
)

// ClampDiscount bounds a discount percentage to [0, 100].
func ClampDiscount(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// LineTotals returns the untaxed and tax-included amounts of a line, each
// rounded to cents. taxRates are percentages of percent-type taxes.
func LineTotals(qty, price, discountPct decimal.Decimal, taxRates []decimal.Decimal) (subtotal, subtotalIncl decimal.Decimal) {
	factor := decimal.NewFromInt(1).Sub(ClampDiscount(discountPct).Div(hundred))
	subtotal = qty.Mul(price).Mul(factor).Round(2)
	rate := decimal.Zero
	for _, r := range taxRates {
		rate = rate.Add(r)
	}
	subtotalIncl = subtotal.Mul(decimal.NewFromInt(1).Add(rate.Div(hundred))).Round(2)
	return subtotal, subtotalIncl
}

// FixedToPercent converts a fixed discount on a line into the equivalent
// percentage of its gross amount, clamped to [0, 100].
func FixedToPercent(amount, gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	return ClampDiscount(amount.Div(gross).Mul(hundred).Round(4))
}

// SplitEven divides amount into n shares of whole cents; the remainder goes
// to the last share.
func SplitEven(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := amount.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	out := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		out[i] = share
		allocated = allocated.Add(share)
	}
	out[n-1] = amount.Sub(allocated)
	return out
}
