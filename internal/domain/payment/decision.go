package payment

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/order"
)

// DefaultTimeout bounds a single gateway lookup.
const DefaultTimeout = 10 * time.Second

// Skip reasons reported for orders that are not confirmed.
const (
	ReasonMissingPaymentID   = "missing payment id"
	ReasonVerificationFailed = "payment verification failed"
)

// Decision is the outcome of confirming a validated order.
type Decision struct {
	Confirmed bool
	Reason    string
}

func confirmed() Decision { return Decision{Confirmed: true} }

func skipped(reason string) Decision { return Decision{Reason: reason} }

// Decider classifies validated orders as confirmed or skipped based on
// payment state. Cash-on-delivery orders are confirmed without a gateway
// call; everything else must be captured at the gateway.
type Decider struct {
	gateway Gateway
	timeout time.Duration
	lg      *zap.Logger
}

// NewDecider creates a Decider. A non-positive timeout falls back to
// DefaultTimeout.
func NewDecider(gateway Gateway, timeout time.Duration, lg *zap.Logger) *Decider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Decider{gateway: gateway, timeout: timeout, lg: lg}
}

// Decide returns whether the order may be invoiced. Gateway errors and
// timeouts skip the order; it is never confirmed optimistically.
func (d *Decider) Decide(ctx context.Context, o *order.Order) Decision {
	if o.IsCOD() {
		return confirmed()
	}

	paymentID := strings.TrimSpace(o.PaymentID)
	if paymentID == "" {
		return skipped(ReasonMissingPaymentID)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	p, err := d.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		d.lg.Warn("Payment verification failed",
			zap.String("order_id", o.ID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return skipped(ReasonVerificationFailed)
	}

	status := strings.ToLower(strings.TrimSpace(p.Status))
	if status != StatusCaptured {
		if status == "" {
			status = "status unknown"
		}
		return skipped("payment " + status)
	}
	return confirmed()
}
