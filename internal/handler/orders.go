package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
)

// ListOrders responds with all orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		h.encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// encodeOrder writes an order using the order store's column names. Money is
// written as JSON numbers with the exact decimal digits.
func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	str := func(name, v string) {
		e.FieldStart(name)
		e.Str(v)
	}

	e.ObjStart()
	str("order_id", o.ID)
	str("customer_name", o.Customer.Name)
	str("email", o.Customer.Email)
	str("phone", o.Customer.Phone)
	str("address1", o.Address.Line1)
	str("address2", o.Address.Line2)
	str("city", o.Address.City)
	str("state", o.Address.State)
	str("pin", o.Address.PostalCode)

	e.FieldStart("product_ids")
	e.ArrStart()
	for _, id := range o.ProductIDs {
		e.Str(id)
	}
	e.ArrEnd()

	e.FieldStart("quantities")
	e.ArrStart()
	for _, q := range o.Quantities {
		e.Int(q)
	}
	e.ArrEnd()

	e.FieldStart("prices")
	e.ArrStart()
	for _, p := range o.UnitPrices {
		e.Num(jx.Num(p.String()))
	}
	e.ArrEnd()

	e.FieldStart("total")
	e.Num(jx.Num(o.DeclaredTotal.String()))

	str("payment_method", o.PaymentMethod)
	str("payment_id", o.PaymentID)
	str("notes", o.Notes)

	e.FieldStart("invoice_generated")
	e.Bool(o.InvoiceGenerated)
	if o.InvoiceGenerated {
		if u, ok := h.store.PublicURL(invoice.Key(o.ID)); ok {
			str("invoice_url", u)
		}
	}
	str("created_at", o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
