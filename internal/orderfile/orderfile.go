// Package orderfile reads orders from JSON fixture files. Field names match
// the order store columns.
package orderfile

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/invoicer/internal/domain/order"
)

type orderJSON struct {
	OrderID          string            `json:"order_id"`
	CustomerName     string            `json:"customer_name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	Address1         string            `json:"address1"`
	Address2         string            `json:"address2"`
	City             string            `json:"city"`
	State            string            `json:"state"`
	Pin              string            `json:"pin"`
	ProductIDs       []string          `json:"product_ids"`
	Quantities       []int             `json:"quantities"`
	Prices           []decimal.Decimal `json:"prices"`
	Total            decimal.Decimal   `json:"total"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentID        string            `json:"payment_id"`
	Notes            string            `json:"notes"`
	InvoiceGenerated bool              `json:"invoice_generated"`
	CreatedAt        *time.Time        `json:"created_at"`
}

func (j *orderJSON) order() order.Order {
	o := order.Order{
		ID: j.OrderID,
		Customer: order.Customer{
			Name:  j.CustomerName,
			Email: j.Email,
			Phone: j.Phone,
		},
		Address: order.Address{
			Line1:      j.Address1,
			Line2:      j.Address2,
			City:       j.City,
			State:      j.State,
			PostalCode: j.Pin,
		},
		ProductIDs:       j.ProductIDs,
		Quantities:       j.Quantities,
		UnitPrices:       j.Prices,
		DeclaredTotal:    j.Total,
		PaymentMethod:    j.PaymentMethod,
		PaymentID:        j.PaymentID,
		Notes:            j.Notes,
		InvoiceGenerated: j.InvoiceGenerated,
	}
	if j.CreatedAt != nil {
		o.CreatedAt = *j.CreatedAt
	}
	return o
}

// Decode reads either a single order object or an array of orders.
func Decode(r io.Reader) ([]order.Order, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	var items []orderJSON
	if data[0] == '{' {
		var one orderJSON
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, errors.Wrap(err, "parse order")
		}
		items = append(items, one)
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "parse orders")
	}

	orders := make([]order.Order, len(items))
	for i := range items {
		orders[i] = items[i].order()
	}
	return orders, nil
}

// ReadFile decodes the orders stored in the named file. Files ending in .gz
// are decompressed first.
func ReadFile(name string) ([]order.Order, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() {
		_ = f.Close()
	}()

	if !strings.HasSuffix(name, ".gz") {
		return Decode(f)
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer func() {
		_ = gz.Close()
	}()
	return Decode(gz)
}
