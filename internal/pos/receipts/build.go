package receipts

import (
	"slices"
	"time"
)

// Build assembles the receipt view of an order. Items keep line order;
// change is reported only when the order was overpaid.
func Build(order OrderData, lines []LineData, payments []PaymentData, company CompanyData, printedAt time.Time) Receipt {
	r := Receipt{
		Company: Company{
			Name:     company.Name.String(),
			VAT:      company.VAT.String(),
			Street:   company.Street.String(),
			City:     company.City.String(),
			Zip:      company.Zip.String(),
			Phone:    company.Phone.String(),
			Email:    company.Email.String(),
			Currency: company.Symbol,
		},
		OrderID:   order.ID,
		OrderName: order.Name.String(),
		State:     order.State,
		Session:   order.Session.Name,
		Cashier:   order.User.Name,
		Customer:  order.Partner.Name,
		Date:      order.DateOrder.Time,
		PrintedAt: printedAt,
		Note:      order.Note.String(),
		Items:     make([]Item, 0, len(lines)),
		Payments:  make([]Payment, 0, len(payments)),
	}
	if r.Company.Currency == "" {
		r.Company.Currency = company.Currency.Name
	}

	lines = slices.Clone(lines)
	slices.SortFunc(lines, func(a, b LineData) int { return int(a.ID - b.ID) })
	for _, l := range lines {
		name := l.Description.String()
		if name == "" {
			name = l.Product.Name
		}
		item := Item{
			Name:      name,
			Qty:       l.Qty.Decimal,
			PriceUnit: l.PriceUnit.Decimal,
			Discount:  l.Discount.Decimal,
			Subtotal:  l.PriceSubtotal.Decimal,
			Total:     l.PriceSubtotalIncl.Decimal,
		}
		if l.Discount.IsPositive() {
			item.DiscountLabel = "-" + l.Discount.String() + "%"
			r.Discount = r.Discount.Add(l.Qty.Mul(l.PriceUnit.Decimal).Sub(l.PriceSubtotal.Decimal))
		}
		r.Subtotal = r.Subtotal.Add(l.PriceSubtotal.Decimal)
		r.Items = append(r.Items, item)
	}
	r.Subtotal = r.Subtotal.Round(2)
	r.Discount = r.Discount.Round(2)
	r.Total = order.AmountTotal.Round(2)
	r.Tax = order.AmountTax.Round(2)
	if r.Tax.IsZero() {
		r.Tax = r.Total.Sub(r.Subtotal)
	}

	payments = slices.Clone(payments)
	slices.SortFunc(payments, func(a, b PaymentData) int { return int(a.ID - b.ID) })
	for _, p := range payments {
		r.Payments = append(r.Payments, Payment{Method: p.Method.Name, Amount: p.Amount.Decimal})
		r.Paid = r.Paid.Add(p.Amount.Decimal)
	}
	if r.Paid.IsZero() {
		r.Paid = order.AmountPaid.Decimal
	}
	if change := r.Paid.Sub(r.Total); change.IsPositive() {
		r.Change = change.Round(2)
	}
	return r
}
