// Package invoice renders an order as a downloadable invoice. It tries a
// tabular PDF first, then a plain PDF, then plain text, so a customer always
// gets a document.
package invoice

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

const (
	FormatPDF  = "pdf"
	FormatText = "text"
)

// Document is a rendered invoice.
type Document struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Shop is printed in the invoice header.
type Shop struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

type tier struct {
	name        string
	contentType string
	ext         string
	render      func(Shop, *models.Order) ([]byte, error)
}

type Renderer struct {
	shop  Shop
	tiers []tier
	log   *slog.Logger
}

func NewRenderer(shop Shop) *Renderer {
	return &Renderer{
		shop: shop,
		tiers: []tier{
			{name: "table", contentType: "application/pdf", ext: "pdf", render: tablePDF},
			{name: "simple", contentType: "application/pdf", ext: "pdf", render: simplePDF},
			{name: "text", contentType: "text/plain; charset=utf-8", ext: "txt", render: plainText},
		},
		log: slog.With("component", "invoice"),
	}
}

// Render produces the invoice. format "text" goes straight to plain text;
// anything else starts with the richest PDF and falls back tier by tier.
func (r *Renderer) Render(o *models.Order, format string) (*Document, error) {
	tiers := r.tiers
	if strings.EqualFold(format, FormatText) {
		tiers = tiers[len(tiers)-1:]
	}

	var lastErr error
	for _, t := range tiers {
		data, err := safeRender(t, r.shop, o)
		if err != nil {
			r.log.Warn("Invoice tier failed, falling back", "tier", t.name, "order", o.OrderNumber, "error", err)
			lastErr = err
			continue
		}
		return &Document{
			Data:        data,
			ContentType: t.contentType,
			Filename:    fmt.Sprintf("invoice-%s.%s", o.OrderNumber, t.ext),
		}, nil
	}
	return nil, fmt.Errorf("all invoice formats failed: %w", lastErr)
}

func safeRender(t tier, shop Shop, o *models.Order) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s renderer panicked: %v", t.name, p)
		}
	}()
	return t.render(shop, o)
}

func newPDF(o *models.Order) (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+o.OrderNumber, true)
	pdf.SetCreationDate(o.CreatedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tablePDF(shop Shop, o *models.Order) ([]byte, error) {
	pdf, tr := newPDF(o)

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(120, 10, tr(shop.Name), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{shop.Address, shop.Email, shop.Phone} {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range orderFacts(o) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Deliver to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range deliveryLines(o) {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 230, 220)
	for i, h := range []string{"Item", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range o.Items {
		pdf.CellFormat(widths[0], 7, tr(truncate(it.ProductName, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(it.Price.StringFixed(2)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(it.LineTotal().StringFixed(2)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	rows := summary(o)
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(widths[0]+widths[1]+widths[2], 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, row[1], "", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 5, "Thank you for shopping with "+tr(shop.Name)+".", "", 1, "C", false, 0, "")

	return output(pdf)
}

// simplePDF writes the same content as positioned lines without a table.
func simplePDF(shop Shop, o *models.Order) ([]byte, error) {
	pdf, tr := newPDF(o)
	pdf.SetFont("Courier", "", 10)

	y := 20.0
	for _, line := range strings.Split(textBody(shop, o), "\n") {
		if y > 280 {
			pdf.AddPage()
			y = 20
		}
		pdf.Text(15, y, tr(line))
		y += 5
	}
	return output(pdf)
}

func plainText(shop Shop, o *models.Order) ([]byte, error) {
	return []byte(textBody(shop, o)), nil
}

func textBody(shop Shop, o *models.Order) string {
	var b strings.Builder
	rule := strings.Repeat("-", 64)

	fmt.Fprintf(&b, "%s - INVOICE\n", strings.ToUpper(shop.Name))
	for _, line := range []string{shop.Address, shop.Email, shop.Phone} {
		if line != "" {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(rule + "\n")
	for _, kv := range orderFacts(o) {
		fmt.Fprintf(&b, "%-16s %s\n", kv[0], kv[1])
	}
	b.WriteString(rule + "\nDeliver to:\n")
	for _, line := range deliveryLines(o) {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-30s %5s %12s %12s\n", "Item", "Qty", "Unit", "Amount")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%-30s %5d %12s %12s\n", truncate(it.ProductName, 30), it.Quantity,
			it.Price.StringFixed(2), it.LineTotal().StringFixed(2))
	}
	b.WriteString(rule + "\n")
	for _, row := range summary(o) {
		fmt.Fprintf(&b, "%49s %12s\n", row[0], row[1])
	}
	return b.String()
}

func orderFacts(o *models.Order) [][2]string {
	method := "M-Pesa"
	if o.PaymentMethod == models.PaymentCOD {
		method = "Cash on delivery"
	}
	facts := [][2]string{
		{"Invoice no:", o.OrderNumber},
		{"Date:", o.CreatedAt.Format("02 Jan 2006")},
		{"Status:", string(o.Status)},
		{"Payment:", method + " (" + string(o.PaymentStatus) + ")"},
	}
	if o.MpesaReceiptNumber != "" {
		facts = append(facts, [2]string{"M-Pesa receipt:", o.MpesaReceiptNumber})
	}
	return facts
}

func deliveryLines(o *models.Order) []string {
	var lines []string
	for _, l := range []string{o.DeliveryName, o.DeliveryPhone, o.DeliveryEmail, o.DeliveryAddress, o.DeliveryCity} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		lines = []string{"-"}
	}
	return lines
}

func summary(o *models.Order) [][2]string {
	return [][2]string{
		{"Subtotal", money(o.Subtotal.StringFixed(2))},
		{"Delivery", money(o.DeliveryFee.StringFixed(2))},
		{"Total", money(o.Total.StringFixed(2))},
	}
}

func money(amount string) string {
	return "KES " + amount
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}

// DefaultShop is used when no shop details are configured.
var DefaultShop = Shop{
	Name:    "Jewell Haven",
	Email:   "orders@jewellhaven.co.ke",
	Address: "Nairobi, Kenya",
}
