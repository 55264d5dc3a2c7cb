package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/invoicer/internal/domain/invoice"
	"github.com/xenking/invoicer/internal/domain/order"
)

const (
	orderColumns = `order_id, customer_name, email, phone,
		address1, address2, city, state, pin,
		product_ids, quantities, prices, total,
		payment_method, payment_id, notes, invoice_generated, created_at`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders ORDER BY created_at DESC`

	listUninvoicedSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE invoice_generated = FALSE ORDER BY created_at DESC`

	getOrderByIDSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE order_id = $1`

	markInvoicedSQL = `UPDATE orders SET invoice_generated = TRUE WHERE order_id = $1`

	upsertOrderSQL = `INSERT INTO orders (order_id, customer_name, email, phone,
		address1, address2, city, state, pin,
		product_ids, quantities, prices, total,
		payment_method, payment_id, notes, invoice_generated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, FALSE,
			COALESCE($17, now()))
		ON CONFLICT (order_id) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address1 = EXCLUDED.address1,
			address2 = EXCLUDED.address2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			pin = EXCLUDED.pin,
			product_ids = EXCLUDED.product_ids,
			quantities = EXCLUDED.quantities,
			prices = EXCLUDED.prices,
			total = EXCLUDED.total,
			payment_method = EXCLUDED.payment_method,
			payment_id = EXCLUDED.payment_id,
			notes = EXCLUDED.notes,
			created_at = COALESCE($17, orders.created_at)`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ invoice.Marker   = (*OrderRepository)(nil)
)

// OrderRepository implements the order store backed by PostgreSQL.
type OrderRepository struct {
	pool       *pgxpool.Pool
	batchLimit int
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// A positive batchLimit caps the number of orders ListUninvoiced returns.
func NewOrderRepository(pool *pgxpool.Pool, batchLimit int) *OrderRepository {
	return &OrderRepository{pool: pool, batchLimit: batchLimit}
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("listing orders: %w", err))
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("listing orders: %w", err))
	}
	return orders, nil
}

// ListUninvoiced returns orders whose invoice has not been generated yet,
// newest first.
func (r *OrderRepository) ListUninvoiced(ctx context.Context) ([]order.Order, error) {
	query := listUninvoicedSQL
	if r.batchLimit > 0 {
		query += " LIMIT " + strconv.Itoa(r.batchLimit)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("listing uninvoiced orders: %w", err))
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("listing uninvoiced orders: %w", err))
	}
	return orders, nil
}

// GetByID returns a single order by its order id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("getting order %q: %w", id, err))
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, wrapUnavailable(fmt.Errorf("getting order %q: %w", id, err))
	}
	return &o, nil
}

// MarkInvoiced sets invoice_generated for the order. The flag is never
// cleared, so repeating the call is harmless.
func (r *OrderRepository) MarkInvoiced(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx, markInvoicedSQL, orderID)
	if err != nil {
		return wrapUnavailable(fmt.Errorf("marking order %q invoiced: %w", orderID, err))
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Upsert inserts or replaces an order. The invoice flag of an existing
// order is left untouched. A zero CreatedAt is stored as now() on insert
// and keeps the stored value on update.
func (r *OrderRepository) Upsert(ctx context.Context, o *order.Order) error {
	var createdAt *time.Time
	if !o.CreatedAt.IsZero() {
		createdAt = &o.CreatedAt
	}
	_, err := r.pool.Exec(ctx, upsertOrderSQL,
		o.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Address.Line1, o.Address.Line2, o.Address.City, o.Address.State, o.Address.PostalCode,
		o.ProductIDs, o.Quantities, o.UnitPrices, o.DeclaredTotal,
		o.PaymentMethod, o.PaymentID, o.Notes, createdAt,
	)
	if err != nil {
		return wrapUnavailable(fmt.Errorf("upserting order %q: %w", o.ID, err))
	}
	return nil
}

// Ping verifies connectivity to the database.
func (r *OrderRepository) Ping(ctx context.Context) error {
	return wrapUnavailable(r.pool.Ping(ctx))
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Address.Line1, &o.Address.Line2, &o.Address.City, &o.Address.State, &o.Address.PostalCode,
		&o.ProductIDs, &o.Quantities, &o.UnitPrices, &o.DeclaredTotal,
		&o.PaymentMethod, &o.PaymentID, &o.Notes, &o.InvoiceGenerated, &o.CreatedAt,
	)
	return o, err
}
