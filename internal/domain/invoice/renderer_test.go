package invoice

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/invoicer/internal/domain/order"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Helpers ---

func newTestRenderer() *Renderer {
	r := NewRenderer(Issuer{
		Name:    "ACME TRADERS",
		Address: "1 Market Street, Kanpur - 208007",
		Contact: "Email: billing@acme.example | Phone: +91-9000000000",
	})
	r.now = func() time.Time { return fixedNow }
	r.compress = false
	return r
}

func newTestOrder(id, method, paymentID string) *order.Order {
	return &order.Order{
		ID: id,
		Customer: order.Customer{
			Name:  "Asha Verma",
			Email: "asha@example.com",
			Phone: "+919876543210",
		},
		Address: order.Address{
			Line1:      "12 MG Road",
			City:       "Kanpur",
			State:      "UP",
			PostalCode: "208007",
		},
		ProductIDs:    []string{"p1", "p2"},
		Quantities:    []int{2, 1},
		UnitPrices:    []decimal.Decimal{decimal.NewFromInt(150), decimal.NewFromInt(300)},
		DeclaredTotal: decimal.NewFromInt(600),
		PaymentMethod: method,
		PaymentID:     paymentID,
	}
}

func withItems(o *order.Order, n int) *order.Order {
	o.ProductIDs = make([]string, n)
	o.Quantities = make([]int, n)
	o.UnitPrices = make([]decimal.Decimal, n)
	for i := range n {
		o.ProductIDs[i] = fmt.Sprintf("p%d", i+1)
		o.Quantities[i] = 1
		o.UnitPrices[i] = decimal.NewFromInt(10)
	}
	o.DeclaredTotal = decimal.NewFromInt(int64(10 * n))
	return o
}

// --- Tests ---

func TestRender_ProducesPDF(t *testing.T) {
	doc, err := newTestRenderer().Render(newTestOrder("ORD-1", "COD", ""))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Contains(t, string(doc), "(Order ID: ORD-1)")
	assert.Contains(t, string(doc), "(Invoice Date: 15-06-2025)")
	assert.Contains(t, string(doc), "(ACME TRADERS)")
	assert.Contains(t, string(doc), "(Bill To:)")
	assert.Contains(t, string(doc), "(12 MG Road , Kanpur, UP - 208007)")
	assert.Contains(t, string(doc), "(Thank you for your business!)")
}

func TestRender_TableValues(t *testing.T) {
	doc, err := newTestRenderer().Render(newTestOrder("ORD-1", "COD", ""))
	require.NoError(t, err)

	s := string(doc)
	for _, want := range []string{
		"(Product ID)", "(Qty)", "(Price \\(INR\\))", "(Total \\(INR\\))",
		"(150.00)", "(300.00)", "(TOTAL)", "(600.00)",
	} {
		assert.Contains(t, s, want)
	}
}

func TestRender_TotalIsDeclaredTotal(t *testing.T) {
	o := newTestOrder("ORD-1", "COD", "")
	o.DeclaredTotal = decimal.RequireFromString("599.5")

	doc, err := newTestRenderer().Render(o)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "(599.50)")
}

func TestRender_PaymentBlock(t *testing.T) {
	r := newTestRenderer()

	cod, err := r.Render(newTestOrder("ORD-1", "COD", "ignored"))
	require.NoError(t, err)
	assert.Contains(t, string(cod), "(Payment Method: COD)")
	assert.NotContains(t, string(cod), "Payment ID:")

	prepaid, err := r.Render(newTestOrder("ORD-2", "razorpay", "pay_123"))
	require.NoError(t, err)
	assert.Contains(t, string(prepaid), "(Payment Method: razorpay)")
	assert.Contains(t, string(prepaid), "(Payment ID: pay_123)")
}

func TestRender_Deterministic(t *testing.T) {
	r := NewRenderer(Issuer{Name: "ACME"})
	r.now = func() time.Time { return fixedNow }

	a, err := r.Render(newTestOrder("ORD-1", "COD", ""))
	require.NoError(t, err)
	b, err := r.Render(newTestOrder("ORD-1", "COD", ""))
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a, b), "same order and render time must produce identical bytes")
}

func TestRender_LineItemCapacity(t *testing.T) {
	assert.Equal(t, 19, MaxLineItems())

	r := newTestRenderer()

	_, err := r.Render(withItems(newTestOrder("FULL", "COD", ""), MaxLineItems()))
	require.NoError(t, err)

	_, err = r.Render(withItems(newTestOrder("OVER", "COD", ""), MaxLineItems()+1))
	require.ErrorIs(t, err, ErrLayoutOverflow)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "OVER", rerr.OrderID)
}

func TestRender_MismatchedLineItems(t *testing.T) {
	o := newTestOrder("ORD-1", "COD", "")
	o.Quantities = o.Quantities[:1]

	_, err := newTestRenderer().Render(o)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.NotErrorIs(t, err, ErrLayoutOverflow)
}

func TestRender_NonASCIICustomer(t *testing.T) {
	o := newTestOrder("ORD-1", "COD", "")
	o.Customer.Name = "José Müller"

	doc, err := newTestRenderer().Render(o)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestRender_MalformedUTF8(t *testing.T) {
	o := newTestOrder("ORD-\xe2\x82", "COD", "")
	o.Customer.Name = "Asha \xff Verma"

	var doc []byte
	require.NotPanics(t, func() {
		var err error
		doc, err = newTestRenderer().Render(o)
		require.NoError(t, err)
	})
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Contains(t, string(doc), "(Order ID: ORD-?)")
}
