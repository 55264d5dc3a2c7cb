package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// StatusCaptured is the gateway status of a payment whose funds were taken.
const StatusCaptured = "captured"

// ErrPaymentNotFound is returned by a Gateway when the payment id is unknown.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is the subset of gateway payment state the pipeline relies on.
type Payment struct {
	ID     string
	Status string
	Method string
}

// Gateway fetches payment state from a remote payment provider.
type Gateway interface {
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}
