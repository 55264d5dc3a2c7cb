// Package invoice renders invoice documents for confirmed orders and
// publishes them to object storage.
package invoice

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"

	"github.com/xenking/invoicer/internal/domain/order"
)

// ErrLayoutOverflow is returned when an order has more line items than fit
// on a single page. Pagination is not supported.
var ErrLayoutOverflow = errors.New("layout overflow")

// RenderError wraps a failure to produce the document for an order.
type RenderError struct {
	OrderID string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render invoice for order %s: %v", e.OrderID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Issuer identifies the business printed in the invoice header.
type Issuer struct {
	Name    string
	Address string
	Contact string
}

// Page geometry in points on an A4 page (595.28 × 841.89).
const (
	marginLeft = 50.0
	lineHeight = 12.0

	metaBoxX = 400.0
	metaBoxY = 50.0
	metaBoxW = 150.0
	metaBoxH = 50.0

	customerY = 120.0

	tableTop   = 220.0
	rowHeight  = 25.0
	colProduct = 150.0
	colQty     = 50.0
	colPrice   = 80.0
	colTotal   = 80.0

	paymentOffset = 40.0
	footerY       = 780.0
	footerW       = 500.0

	dateLayout = "02-01-2006"
	producer   = "invoicer"
)

// MaxLineItems returns how many line items fit on one page: the header row,
// item rows, totals row and payment block must end above the footer.
func MaxLineItems() int {
	// rowY after n items is tableTop + (n+1)*rowHeight; the payment line
	// ends at rowY + paymentOffset + lineHeight.
	avail := footerY - tableTop - paymentOffset - lineHeight
	return int(avail/rowHeight) - 1
}

// Renderer lays out single-page invoice documents. The output depends only
// on the order and the render time returned by now.
type Renderer struct {
	issuer   Issuer
	now      func() time.Time
	compress bool
}

// NewRenderer creates a Renderer printing the given issuer in the header.
func NewRenderer(issuer Issuer) *Renderer {
	return &Renderer{issuer: issuer, now: time.Now, compress: true}
}

// Render produces the PDF document for a validated order. The invoice date
// and document creation date are the render time.
func (r *Renderer) Render(o *order.Order) ([]byte, error) {
	n := len(o.ProductIDs)
	if len(o.Quantities) != n || len(o.UnitPrices) != n {
		return nil, &RenderError{OrderID: o.ID, Err: errors.New("line item length mismatch")}
	}
	if n > MaxLineItems() {
		return nil, &RenderError{
			OrderID: o.ID,
			Err:     errors.Wrapf(ErrLayoutOverflow, "%d line items, page fits %d", n, MaxLineItems()),
		}
	}

	now := r.now().UTC()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetProducer(producer, false)
	pdf.SetTitle(strings.ToValidUTF8("Invoice "+o.ID, "?"), true)
	pdf.SetMargins(marginLeft, 40, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	// fpdf indexes past the end of malformed UTF-8.
	tr := func(s string) string { return cp1252(strings.ToValidUTF8(s, "?")) }
	l := &layout{pdf: pdf, tr: tr}
	l.header(r.issuer)
	l.meta(o.ID, now)
	l.customer(o)
	rowY := l.table(o)
	l.payment(o, rowY)
	l.footer()

	if err := pdf.Error(); err != nil {
		return nil, &RenderError{OrderID: o.ID, Err: err}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{OrderID: o.ID, Err: err}
	}
	return buf.Bytes(), nil
}

// layout draws the fixed-position blocks of the page.
type layout struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// text writes s with its top-left corner at (x, y). A zero width extends the
// cell to the right margin.
func (l *layout) text(x, y, w float64, s, align string) {
	l.pdf.SetXY(x, y)
	l.pdf.CellFormat(w, lineHeight, l.tr(s), "", 0, align, false, 0, "")
}

// cell writes s in a boxed table cell.
func (l *layout) cell(x, y, w float64, s, align string) {
	l.pdf.SetXY(x, y)
	l.pdf.CellFormat(w, rowHeight, l.tr(s), "1", 0, align, false, 0, "")
}

func (l *layout) header(is Issuer) {
	l.pdf.SetFont("Helvetica", "B", 20)
	l.text(marginLeft, 40, 0, is.Name, "L")
	l.pdf.SetFont("Helvetica", "", 10)
	l.text(marginLeft, 65, 0, is.Address, "L")
	l.text(marginLeft, 80, 0, is.Contact, "L")
}

func (l *layout) meta(orderID string, now time.Time) {
	const pad = 10.0
	l.pdf.Rect(metaBoxX, metaBoxY, metaBoxW, metaBoxH, "D")
	l.pdf.SetFont("Helvetica", "B", 14)
	l.text(metaBoxX+pad, metaBoxY+5, metaBoxW-pad, "INVOICE", "L")
	l.pdf.SetFont("Helvetica", "", 9)
	l.text(metaBoxX+pad, metaBoxY+23, metaBoxW-pad, "Invoice Date: "+now.Format(dateLayout), "L")
	l.text(metaBoxX+pad, metaBoxY+35, metaBoxW-pad, "Order ID: "+orderID, "L")
}

func (l *layout) customer(o *order.Order) {
	l.pdf.SetFont("Helvetica", "B", 12)
	l.text(marginLeft, customerY, 0, "Bill To:", "L")
	l.pdf.SetFont("Helvetica", "", 10)
	l.text(marginLeft, customerY+15, 0, o.Customer.Name, "L")
	l.text(marginLeft, customerY+30, 0, o.Customer.Email, "L")
	l.text(marginLeft, customerY+45, 0, o.Customer.Phone, "L")
	l.text(marginLeft, customerY+60, 300, o.Address.FormatAddress(), "L")
}

// table draws the line item table and totals row and returns the y
// coordinate of the totals row.
func (l *layout) table(o *order.Order) float64 {
	widths := [4]float64{colProduct, colQty, colPrice, colTotal}
	aligns := [4]string{"L", "C", "C", "C"}

	row := func(y float64, values [4]string) {
		x := marginLeft
		for i, v := range values {
			l.cell(x, y, widths[i], v, aligns[i])
			x += widths[i]
		}
	}

	l.pdf.SetFont("Helvetica", "B", 10)
	row(tableTop, [4]string{"Product ID", "Qty", "Price (INR)", "Total (INR)"})

	l.pdf.SetFont("Helvetica", "", 10)
	rowY := tableTop + rowHeight
	for _, li := range o.LineItems() {
		row(rowY, [4]string{
			li.ProductID,
			strconv.Itoa(li.Quantity),
			li.UnitPrice.StringFixed(2),
			li.Amount().StringFixed(2),
		})
		rowY += rowHeight
	}

	// The printed total is the validated declared total, never a re-sum.
	l.pdf.SetFont("Helvetica", "B", 10)
	priceX := marginLeft + colProduct + colQty
	l.cell(priceX, rowY, colPrice, "TOTAL", "C")
	l.cell(priceX+colPrice, rowY, colTotal, o.DeclaredTotal.StringFixed(2), "C")
	return rowY
}

func (l *layout) payment(o *order.Order, rowY float64) {
	y := rowY + paymentOffset
	l.pdf.SetFont("Helvetica", "", 10)
	l.text(marginLeft, y, 200, "Payment Method: "+o.PaymentMethod, "L")
	if !o.IsCOD() {
		l.text(marginLeft+200, y, 0, "Payment ID: "+o.PaymentID, "L")
	}
}

func (l *layout) footer() {
	l.pdf.SetFont("Helvetica", "", 9)
	l.pdf.SetTextColor(153, 153, 153)
	l.text(marginLeft, footerY, footerW, "Thank you for your business!", "C")
	l.pdf.SetTextColor(0, 0, 0)
}
