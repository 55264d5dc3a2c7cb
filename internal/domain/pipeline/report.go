package pipeline

import (
	"github.com/go-faster/jx"

	"github.com/xenking/invoicer/internal/domain/order"
)

// Report summarises one batch run.
type Report struct {
	TotalOrders     int
	ConfirmedOrders int
	SkippedOrders   []OrderIssue
	Invoices        []Invoice
	// FailedOrders lists confirmed orders whose invoice could not be
	// rendered or published. They stay un-invoiced and are retried.
	FailedOrders []OrderIssue
	// Warnings lists orders whose invoice was stored but whose flag update
	// failed.
	Warnings []OrderIssue
}

// OrderIssue pairs an order with the reason it was not invoiced cleanly.
type OrderIssue struct {
	OrderID string
	Reason  string
}

// Invoice is a published invoice entry.
type Invoice struct {
	OrderID    string
	InvoiceURL string
}

// Encode writes the report as a JSON object. Warnings are omitted when empty.
func (r *Report) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("total_orders")
	e.Int(r.TotalOrders)
	e.FieldStart("confirmed_orders")
	e.Int(r.ConfirmedOrders)
	e.FieldStart("skipped_orders")
	encodeIssues(e, r.SkippedOrders)
	e.FieldStart("invoices")
	e.ArrStart()
	for _, inv := range r.Invoices {
		e.ObjStart()
		e.FieldStart("order_id")
		e.Str(inv.OrderID)
		e.FieldStart("invoice_url")
		e.Str(inv.InvoiceURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("failed_orders")
	encodeIssues(e, r.FailedOrders)
	if len(r.Warnings) > 0 {
		e.FieldStart("warnings")
		encodeIssues(e, r.Warnings)
	}
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (r *Report) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	r.Encode(&e)
	return e.Bytes(), nil
}

func encodeIssues(e *jx.Encoder, issues []OrderIssue) {
	e.ArrStart()
	for _, is := range issues {
		e.ObjStart()
		e.FieldStart("order_id")
		e.Str(is.OrderID)
		e.FieldStart("reason")
		e.Str(is.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// newReport aggregates per-order outcomes in input order.
func newReport(orders []order.Order, results []outcome) *Report {
	r := &Report{
		TotalOrders:   len(orders),
		SkippedOrders: []OrderIssue{},
		Invoices:      []Invoice{},
		FailedOrders:  []OrderIssue{},
	}
	for i, res := range results {
		id := orders[i].ID
		if res.confirmed {
			r.ConfirmedOrders++
		}
		switch {
		case res.skipped != "":
			r.SkippedOrders = append(r.SkippedOrders, OrderIssue{OrderID: id, Reason: res.skipped})
		case res.failed != "":
			r.FailedOrders = append(r.FailedOrders, OrderIssue{OrderID: id, Reason: res.failed})
		case res.invoice != nil:
			r.Invoices = append(r.Invoices, *res.invoice)
		}
		if res.warning != "" {
			r.Warnings = append(r.Warnings, OrderIssue{OrderID: id, Reason: res.warning})
		}
	}
	return r
}
