package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
	"github.com/xenking/invoicer/internal/domain/payment"
	"github.com/xenking/invoicer/internal/domain/pipeline"
	"github.com/xenking/invoicer/internal/gateway/razorpay"
	"github.com/xenking/invoicer/internal/storage/objectstore"
	"github.com/xenking/invoicer/internal/storage/postgres"
)

// ObjectStore is an invoice store that can report its own health.
type ObjectStore interface {
	invoice.ObjectStore
	Ping(ctx context.Context) error
}

// Service holds the wired domain components shared by the server and the
// CLI.
type Service struct {
	Pool     *pgxpool.Pool
	Orders   *postgres.OrderRepository
	Store    ObjectStore
	Renderer *invoice.Renderer
	Pipeline *pipeline.Pipeline
}

// NewService connects to the order store and object storage and wires the
// invoicing pipeline. Close releases the database pool.
func NewService(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
) (_ *Service, rerr error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set INVOICER_DATABASE_URL or DATABASE_URL")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	defer func() {
		if rerr != nil {
			pool.Close()
		}
	}()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	store, err := NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "create object store")
	}

	orders := postgres.NewOrderRepository(pool, cfg.Pipeline.BatchLimit)
	gateway := razorpay.NewClient(razorpay.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	}, tp, mp)

	renderer := NewRenderer(cfg.Issuer)
	p, err := pipeline.New(
		pipeline.Config{
			Workers: cfg.Pipeline.Workers,
			Policy:  order.Policy{MaxQuantity: cfg.Pipeline.MaxQuantity},
		},
		orders,
		payment.NewDecider(gateway, cfg.Payment.Timeout, lg.Named("payment")),
		renderer,
		invoice.NewPublisher(store, orders, cfg.Storage.Timeout, lg.Named("publisher")),
		lg.Named("pipeline"), tp, mp,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline")
	}

	return &Service{
		Pool:     pool,
		Orders:   orders,
		Store:    store,
		Renderer: renderer,
		Pipeline: p,
	}, nil
}

// Close releases the database pool.
func (s *Service) Close() {
	s.Pool.Close()
}

// NewObjectStore creates the configured invoice store.
func NewObjectStore(ctx context.Context, cfg StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case StorageS3:
		return objectstore.NewS3(ctx, objectstore.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	case StorageFS:
		return objectstore.NewFS(cfg.Dir, cfg.PublicBaseURL)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewRenderer creates the invoice renderer for the configured issuer.
func NewRenderer(cfg IssuerConfig) *invoice.Renderer {
	return invoice.NewRenderer(invoice.Issuer{
		Name:    cfg.Name,
		Address: cfg.Address,
		Contact: cfg.Contact,
	})
}
