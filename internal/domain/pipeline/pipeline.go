// Package pipeline turns un-invoiced orders into published invoices.
//
// A batch lists un-invoiced orders newest first and processes them
// independently on a bounded worker pool:
// validate → decide → render → publish. Per-order failures are collected
// into the Report; only an unreachable order store or storage service
// aborts the batch.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
	"github.com/xenking/invoicer/internal/domain/payment"
)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 4

// ErrBatchInProgress is returned by Run while another batch is running.
var ErrBatchInProgress = errors.New("batch already in progress")

// Store lists orders that still need an invoice.
type Store interface {
	// ListUninvoiced returns orders with invoice_generated=false, newest first.
	ListUninvoiced(ctx context.Context) ([]order.Order, error)
}

// Decider classifies validated orders.
type Decider interface {
	Decide(ctx context.Context, o *order.Order) payment.Decision
}

// Renderer produces the invoice document for an order.
type Renderer interface {
	Render(o *order.Order) ([]byte, error)
}

// Publisher stores a document and marks its order as invoiced.
type Publisher interface {
	Publish(ctx context.Context, o *order.Order, doc []byte) (*invoice.Published, error)
}

// Config holds pipeline tuning.
type Config struct {
	Workers int
	Policy  order.Policy
}

// Pipeline runs invoicing batches. At most one batch runs at a time per
// Pipeline; coordinating separate processes is up to the scheduler.
type Pipeline struct {
	store     Store
	decider   Decider
	renderer  Renderer
	publisher Publisher

	workers int
	policy  order.Policy

	running sync.Mutex
	lg      *zap.Logger
	tracer  trace.Tracer
	metrics *pipelineMetrics
}

// New creates a Pipeline with the given collaborators.
func New(
	cfg Config,
	store Store,
	decider Decider,
	renderer Renderer,
	publisher Publisher,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	m, err := newPipelineMetrics(mp.Meter("invoicer/pipeline"))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return &Pipeline{
		store:     store,
		decider:   decider,
		renderer:  renderer,
		publisher: publisher,
		workers:   cfg.Workers,
		policy:    cfg.Policy,
		lg:        lg,
		tracer:    tp.Tracer("invoicer/pipeline"),
		metrics:   m,
	}, nil
}

// outcome is the result of processing a single order.
type outcome struct {
	confirmed bool
	skipped   string
	failed    string
	warning   string
	invoice   *Invoice
}

// Run processes one batch. On a backend outage it returns an error wrapping
// invoice.ErrBackendUnavailable; flags already committed stay committed.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.running.TryLock() {
		return nil, ErrBatchInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	orders, err := p.store.ListUninvoiced(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list orders")
		return nil, errors.Wrap(invoice.Unavailable(err), "list uninvoiced orders")
	}
	span.SetAttributes(attribute.Int("orders", len(orders)))

	results := make([]outcome, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range orders {
		g.Go(func() error {
			res, err := p.process(gctx, &orders[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
		p.lg.Error("Batch aborted", zap.Error(err), zap.Int("orders", len(orders)))
		return nil, errors.Wrap(err, "process batch")
	}

	report := newReport(orders, results)
	p.lg.Info("Batch complete",
		zap.Int("total", report.TotalOrders),
		zap.Int("confirmed", report.ConfirmedOrders),
		zap.Int("skipped", len(report.SkippedOrders)),
		zap.Int("invoices", len(report.Invoices)),
		zap.Int("failed", len(report.FailedOrders)),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

// process runs one order through the pipeline. A non-nil error means the
// whole batch must stop.
func (p *Pipeline) process(ctx context.Context, o *order.Order) (outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.order",
		trace.WithAttributes(attribute.String("order.id", o.ID)),
	)
	defer span.End()

	lg := p.lg.With(zap.String("order_id", o.ID))
	p.metrics.total.Add(ctx, 1)

	if err := order.Validate(o, p.policy); err != nil {
		lg.Info("Order skipped", zap.String("reason", err.Error()))
		span.SetAttributes(attribute.String("order.outcome", "invalid"))
		p.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "validate")))
		return outcome{skipped: err.Error()}, nil
	}

	if d := p.decider.Decide(ctx, o); !d.Confirmed {
		lg.Info("Order skipped", zap.String("reason", d.Reason))
		span.SetAttributes(attribute.String("order.outcome", "unpaid"))
		p.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "decide")))
		return outcome{skipped: d.Reason}, nil
	}
	p.metrics.confirmed.Add(ctx, 1)
	res := outcome{confirmed: true}

	doc, err := p.renderer.Render(o)
	if err != nil {
		lg.Error("Render failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "render")
		p.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "render")))
		res.failed = "render: " + err.Error()
		return res, nil
	}

	pub, err := p.publisher.Publish(ctx, o, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		if errors.Is(err, invoice.ErrBackendUnavailable) {
			return res, err
		}
		lg.Error("Publish failed", zap.Error(err))
		p.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "publish")))
		res.failed = "publish: " + err.Error()
		return res, nil
	}

	if !pub.Marked {
		res.warning = "invoice stored but order not marked; will be re-published next batch"
		if pub.MarkErr != nil {
			res.warning += ": " + pub.MarkErr.Error()
		}
	}
	p.metrics.published.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.outcome", "invoiced"))
	lg.Info("Invoice published", zap.String("key", pub.Key), zap.String("url", pub.URL))
	res.invoice = &Invoice{OrderID: o.ID, InvoiceURL: pub.URL}
	return res, nil
}

type pipelineMetrics struct {
	total     metric.Int64Counter
	confirmed metric.Int64Counter
	skipped   metric.Int64Counter
	failed    metric.Int64Counter
	published metric.Int64Counter
}

func newPipelineMetrics(meter metric.Meter) (*pipelineMetrics, error) {
	var (
		m   pipelineMetrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.total, "invoicer.orders.total", "Orders seen by the pipeline"},
		{&m.confirmed, "invoicer.orders.confirmed", "Orders confirmed for invoicing"},
		{&m.skipped, "invoicer.orders.skipped", "Orders skipped by validation or payment state"},
		{&m.failed, "invoicer.orders.failed", "Confirmed orders that failed to render or publish"},
		{&m.published, "invoicer.invoices.published", "Invoices stored in object storage"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, errors.Wrapf(err, "counter %s", c.name)
		}
	}
	return &m, nil
}
