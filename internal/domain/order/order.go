package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethodCOD is the cash-on-delivery payment method. Comparison is
// case-insensitive.
const PaymentMethodCOD = "cod"

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a customer purchase record pending invoicing.
//
// Line items are stored as three index-aligned slices, matching the order
// store schema. Use LineItems to zip them once the order is validated.
type Order struct {
	ID       string
	Customer Customer
	Address  Address

	ProductIDs []string
	Quantities []int
	UnitPrices []decimal.Decimal

	DeclaredTotal    decimal.Decimal
	PaymentMethod    string
	PaymentID        string
	Notes            string
	InvoiceGenerated bool
	CreatedAt        time.Time
}

// Customer holds the billing contact of an order.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Address is the postal address of the customer.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
}

// LineItem is a single (product, quantity, price) triple.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Amount returns quantity × unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineItems zips the parallel line item slices. It stops at the shortest
// slice, so callers must validate the order first.
func (o *Order) LineItems() []LineItem {
	n := min(len(o.ProductIDs), len(o.Quantities), len(o.UnitPrices))
	items := make([]LineItem, n)
	for i := range n {
		items[i] = LineItem{
			ProductID: o.ProductIDs[i],
			Quantity:  o.Quantities[i],
			UnitPrice: o.UnitPrices[i],
		}
	}
	return items
}

// IsCOD reports whether the order is paid on delivery.
func (o *Order) IsCOD() bool {
	return strings.EqualFold(strings.TrimSpace(o.PaymentMethod), PaymentMethodCOD)
}

// FormatAddress renders the address on a single line as
// "line1 line2, city, state - pin". A missing line 2 renders as empty.
func (a Address) FormatAddress() string {
	return a.Line1 + " " + a.Line2 + ", " + a.City + ", " + a.State + " - " + a.PostalCode
}

// Repository defines read operations on the order store.
type Repository interface {
	// List returns all orders, newest first.
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
}
