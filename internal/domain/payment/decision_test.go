package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/order"
)

// --- Mock implementations ---

type mockGateway struct {
	payment *Payment
	err     error
	calls   []string
	block   bool
}

func (m *mockGateway) FetchPayment(ctx context.Context, id string) (*Payment, error) {
	m.calls = append(m.calls, id)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.payment, m.err
}

// --- Tests ---

func TestDecide_COD(t *testing.T) {
	gw := &mockGateway{err: errors.New("must not be called")}
	d := NewDecider(gw, time.Second, zap.NewNop())

	for _, method := range []string{"cod", "COD", "Cod"} {
		got := d.Decide(context.Background(), &order.Order{ID: "o1", PaymentMethod: method})
		assert.True(t, got.Confirmed, method)
	}
	assert.Empty(t, gw.calls)
}

func TestDecide_Prepaid(t *testing.T) {
	tests := []struct {
		name          string
		paymentID     string
		gw            *mockGateway
		wantConfirmed bool
		wantReason    string
	}{
		{
			name:          "captured is confirmed",
			paymentID:     "p1",
			gw:            &mockGateway{payment: &Payment{ID: "p1", Status: "captured"}},
			wantConfirmed: true,
		},
		{
			name:          "captured is case-insensitive",
			paymentID:     "p1",
			gw:            &mockGateway{payment: &Payment{ID: "p1", Status: "Captured"}},
			wantConfirmed: true,
		},
		{
			name:       "pending is skipped",
			paymentID:  "p1",
			gw:         &mockGateway{payment: &Payment{ID: "p1", Status: "pending"}},
			wantReason: "payment pending",
		},
		{
			name:       "authorized is skipped",
			paymentID:  "p1",
			gw:         &mockGateway{payment: &Payment{ID: "p1", Status: "authorized"}},
			wantReason: "payment authorized",
		},
		{
			name:       "gateway error is skipped",
			paymentID:  "p1",
			gw:         &mockGateway{err: errors.New("connection refused")},
			wantReason: ReasonVerificationFailed,
		},
		{
			name:       "unknown payment is skipped",
			paymentID:  "p404",
			gw:         &mockGateway{err: ErrPaymentNotFound},
			wantReason: ReasonVerificationFailed,
		},
		{
			name:       "missing payment id is skipped",
			paymentID:  "  ",
			gw:         &mockGateway{},
			wantReason: ReasonMissingPaymentID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecider(tt.gw, time.Second, zap.NewNop())

			got := d.Decide(context.Background(), &order.Order{
				ID:            "o1",
				PaymentMethod: "razorpay",
				PaymentID:     tt.paymentID,
			})

			assert.Equal(t, tt.wantConfirmed, got.Confirmed)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestDecide_MissingPaymentIDSkipsGateway(t *testing.T) {
	gw := &mockGateway{}
	d := NewDecider(gw, time.Second, zap.NewNop())

	got := d.Decide(context.Background(), &order.Order{ID: "o1", PaymentMethod: "upi"})

	assert.False(t, got.Confirmed)
	assert.Empty(t, gw.calls)
}

func TestDecide_TimeoutIsSkipped(t *testing.T) {
	gw := &mockGateway{block: true}
	d := NewDecider(gw, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	got := d.Decide(context.Background(), &order.Order{ID: "o1", PaymentMethod: "card", PaymentID: "p1"})

	assert.False(t, got.Confirmed)
	assert.Equal(t, ReasonVerificationFailed, got.Reason)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewDecider_DefaultTimeout(t *testing.T) {
	d := NewDecider(&mockGateway{}, 0, zap.NewNop())
	assert.Equal(t, DefaultTimeout, d.timeout)
}
