package receipts

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money formats amounts with a locale's separators.
type Money struct {
	printer *message.Printer
}

// NewMoney builds a formatter for a BCP 47 tag; unknown tags fall back to Spanish.
func NewMoney(locale string) Money {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Spanish
	}
	return Money{printer: message.NewPrinter(tag)}
}

// Amount renders d with two decimals.
func (m Money) Amount(d decimal.Decimal) string {
	if m.printer == nil {
		return d.StringFixed(2)
	}
	return m.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// Format renders d followed by the currency symbol.
func (m Money) Format(d decimal.Decimal, symbol string) string {
	if symbol == "" {
		return m.Amount(d)
	}
	return m.Amount(d) + " " + symbol
}

// Qty renders a quantity without trailing zeros.
func (m Money) Qty(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.String()
	}
	if m.printer == nil {
		return d.String()
	}
	return m.printer.Sprintf("%v", d.InexactFloat64())
}
