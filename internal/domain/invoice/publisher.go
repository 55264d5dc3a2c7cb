package invoice

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/order"
)

// ContentType is the media type of rendered invoices.
const ContentType = "application/pdf"

// DefaultUploadTimeout bounds a single document upload.
const DefaultUploadTimeout = 30 * time.Second

var (
	// ErrObjectNotFound is returned by an ObjectStore when no object exists
	// under the requested key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBackendUnavailable marks errors caused by an unreachable order store
	// or storage service. Such errors abort the whole batch.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Unavailable marks err with ErrBackendUnavailable while keeping err in the
// chain. Nil and already marked errors are returned as is.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return &unavailableError{err: err}
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return ErrBackendUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.err}
}

// Key returns the canonical storage key of the invoice for an order.
func Key(orderID string) string {
	return "Invoice_" + orderID + ".pdf"
}

// ObjectStore is durable storage for rendered documents. Put overwrites any
// existing object under the same key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PublicURL returns a publicly retrievable URL for key, if the store
	// exposes one.
	PublicURL(key string) (string, bool)
}

// Marker flips the invoice_generated flag of an order. It only ever sets
// the flag to true.
type Marker interface {
	MarkInvoiced(ctx context.Context, orderID string) error
}

// Stage identifies the publication step that failed.
type Stage string

const (
	StageUpload Stage = "upload"
	StageMark   Stage = "mark"
)

// PublishError wraps a failed publication step.
type PublishError struct {
	OrderID string
	Stage   Stage
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish invoice for order %s: %s: %v", e.OrderID, e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Published describes a stored invoice.
type Published struct {
	Key string
	URL string
	// Marked is false when the document was stored but the order could not
	// be flagged; the order is re-processed on the next batch.
	Marked  bool
	MarkErr error
}

// Publisher uploads invoices and marks their orders as invoiced.
type Publisher struct {
	store   ObjectStore
	orders  Marker
	timeout time.Duration
	lg      *zap.Logger
}

// NewPublisher creates a Publisher. A non-positive timeout falls back to
// DefaultUploadTimeout.
func NewPublisher(store ObjectStore, orders Marker, timeout time.Duration, lg *zap.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &Publisher{store: store, orders: orders, timeout: timeout, lg: lg}
}

// Publish stores doc under Key(o.ID) and then sets the order's
// invoice_generated flag.
//
// An upload failure returns a *PublishError and leaves the order untouched.
// A flag update failure after a successful upload is not an error: the
// result has Marked set to false and the next batch re-uploads the same key.
func (p *Publisher) Publish(ctx context.Context, o *order.Order, doc []byte) (*Published, error) {
	key := Key(o.ID)

	if err := p.upload(ctx, key, doc); err != nil {
		return nil, &PublishError{OrderID: o.ID, Stage: StageUpload, Err: err}
	}

	res := &Published{Key: key, Marked: true}
	if err := p.orders.MarkInvoiced(ctx, o.ID); err != nil {
		p.lg.Warn("Invoice stored but order not marked",
			zap.String("order_id", o.ID),
			zap.String("key", key),
			zap.Error(err),
		)
		res.Marked = false
		res.MarkErr = &PublishError{OrderID: o.ID, Stage: StageMark, Err: err}
	}

	if url, ok := p.store.PublicURL(key); ok {
		res.URL = url
	}
	return res, nil
}

func (p *Publisher) upload(ctx context.Context, key string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.store.Put(ctx, key, doc, ContentType); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}
