package receipts

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/modaboutique/backoffice/internal/fallback"
)

//go:embed templates/receipt.html
var templateFS embed.FS

const dateLayout = "02/01/2006 15:04"

// Renderer produces HTML and PDF receipts.
type Renderer struct {
	money    Money
	location *time.Location
	tmpl     *template.Template
}

// NewRenderer parses the receipt template. A nil location prints UTC.
func NewRenderer(money Money, location *time.Location) (*Renderer, error) {
	if location == nil {
		location = time.UTC
	}
	r := &Renderer{money: money, location: location}
	tmpl, err := template.New("receipt.html").Funcs(template.FuncMap{
		"money":    money.Amount,
		"qty":      money.Qty,
		"date":     r.date,
		"currency": money.Format,
	}).ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *Renderer) date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(dateLayout)
}

// HTML renders the self-contained receipt page.
func (r *Renderer) HTML(receipt Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, receipt); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// Converter turns HTML into PDF.
type Converter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDF renders through the converter when one is configured, falling back
// to a locally drawn thermal ticket. It returns the strategy used.
func (r *Renderer) PDF(ctx context.Context, chain fallback.Chain, converter Converter, receipt Receipt) ([]byte, string, error) {
	var strategies []fallback.Strategy[[]byte]
	if converter != nil {
		strategies = append(strategies, fallback.Strategy[[]byte]{Name: "gotenberg", Run: func(ctx context.Context) ([]byte, error) {
			html, err := r.HTML(receipt)
			if err != nil {
				return nil, fallback.Stop(err)
			}
			return converter.RenderHTML(ctx, string(html))
		}})
	}
	strategies = append(strategies, fallback.Strategy[[]byte]{Name: "fpdf", Run: func(context.Context) ([]byte, error) {
		return r.ticket(receipt)
	}})
	res, err := fallback.Run(ctx, chain, strategies...)
	if err != nil {
		return nil, "", err
	}
	return res.Value, res.Strategy, nil
}

// ticket draws an 80mm receipt with the core PDF fonts.
func (r *Renderer) ticket(receipt Receipt) ([]byte, error) {
	height := 70.0 + 9*float64(len(receipt.Items)) + 5*float64(len(receipt.Payments))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	line := func() {
		pdf.Ln(1)
		pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
		pdf.Ln(1)
	}
	row := func(left, right string, h float64) {
		pdf.CellFormat(contentW*0.68, h, tr(left), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.32, h, tr(right), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6, tr(receipt.Company.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	for _, s := range []string{receipt.Company.VAT, receipt.Company.Street, receipt.Company.Zip + " " + receipt.Company.City} {
		if s != "" && s != " " {
			pdf.CellFormat(contentW, 3.5, tr(s), "", 1, "C", false, 0, "")
		}
	}
	line()

	pdf.SetFont("Helvetica", "", 8)
	row("Ticket "+receipt.OrderName, r.date(receipt.Date), 4)
	if receipt.Cashier != "" {
		row("Cajero: "+receipt.Cashier, "", 4)
	}
	line()

	for _, item := range receipt.Items {
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(contentW, 4, tr(item.Name), "", 1, "L", false, 0, "")
		detail := r.money.Qty(item.Qty) + " x " + r.money.Amount(item.PriceUnit)
		if item.DiscountLabel != "" {
			detail += " " + item.DiscountLabel
		}
		pdf.SetFont("Helvetica", "", 7)
		row(detail, r.money.Amount(item.Subtotal), 4)
	}
	line()

	pdf.SetFont("Helvetica", "", 8)
	if receipt.Discount.IsPositive() {
		row("Descuento", "-"+r.money.Amount(receipt.Discount), 4)
	}
	row("Base imponible", r.money.Amount(receipt.Subtotal), 4)
	row("Impuestos", r.money.Amount(receipt.Tax), 4)
	pdf.SetFont("Helvetica", "B", 10)
	row("TOTAL", r.money.Format(receipt.Total, receipt.Company.Currency), 6)

	pdf.SetFont("Helvetica", "", 8)
	for _, p := range receipt.Payments {
		row(p.Method, r.money.Amount(p.Amount), 4)
	}
	if receipt.Change.IsPositive() {
		row("Cambio", r.money.Amount(receipt.Change), 4)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("¡Gracias por su compra!"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: write ticket: %w", err)
	}
	return buf.Bytes(), nil
}
