//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/invoicer/internal/domain/order"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "invoicer",
				"POSTGRES_PASSWORD": "invoicer",
				"POSTGRES_DB":       "invoicer",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://invoicer:invoicer@%s:%s/invoicer?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func fixtureOrder(id string) *order.Order {
	return &order.Order{
		ID:            id,
		Customer:      order.Customer{Name: "Asha Verma", Email: "asha@example.com", Phone: "+919876543210"},
		Address:       order.Address{Line1: "12 MG Road", City: "Kanpur", State: "UP", PostalCode: "208007"},
		ProductIDs:    []string{"p1", "p2"},
		Quantities:    []int{2, 1},
		UnitPrices:    []decimal.Decimal{decimal.RequireFromString("150.50"), decimal.NewFromInt(300)},
		DeclaredTotal: decimal.RequireFromString("601.00"),
		PaymentMethod: "cod",
	}
}

func TestOrderRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := NewOrderRepository(pool, 0)
	ctx := context.Background()

	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		require.NoError(t, repo.Upsert(ctx, fixtureOrder(id)))
		time.Sleep(10 * time.Millisecond)
	}

	t.Run("list uninvoiced newest first", func(t *testing.T) {
		orders, err := repo.ListUninvoiced(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, "ORD-3", orders[0].ID)
		assert.Equal(t, "ORD-1", orders[2].ID)

		o := orders[0]
		assert.Equal(t, []int{2, 1}, o.Quantities)
		require.Len(t, o.UnitPrices, 2)
		assert.True(t, decimal.RequireFromString("150.50").Equal(o.UnitPrices[0]))
		assert.True(t, decimal.RequireFromString("601").Equal(o.DeclaredTotal))
		assert.NoError(t, order.Validate(&o, order.DefaultPolicy()))
	})

	t.Run("batch limit", func(t *testing.T) {
		orders, err := NewOrderRepository(pool, 2).ListUninvoiced(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("mark invoiced", func(t *testing.T) {
		require.NoError(t, repo.MarkInvoiced(ctx, "ORD-2"))
		require.NoError(t, repo.MarkInvoiced(ctx, "ORD-2"))

		orders, err := repo.ListUninvoiced(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 2)

		o, err := repo.GetByID(ctx, "ORD-2")
		require.NoError(t, err)
		assert.True(t, o.InvoiceGenerated)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("upsert keeps invoice flag", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, fixtureOrder("ORD-2")))

		o, err := repo.GetByID(ctx, "ORD-2")
		require.NoError(t, err)
		assert.True(t, o.InvoiceGenerated)

		orders, err := repo.ListUninvoiced(ctx)
		require.NoError(t, err)
		for _, u := range orders {
			assert.NotEqual(t, "ORD-2", u.ID)
		}
	})

	t.Run("created at from order", func(t *testing.T) {
		old := fixtureOrder("ORD-0")
		old.CreatedAt = time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
		require.NoError(t, repo.Upsert(ctx, old))

		o, err := repo.GetByID(ctx, "ORD-0")
		require.NoError(t, err)
		assert.True(t, old.CreatedAt.Equal(o.CreatedAt))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "ORD-0", all[3].ID)

		// Re-seeding without a timestamp keeps the stored one.
		require.NoError(t, repo.Upsert(ctx, fixtureOrder("ORD-0")))
		o, err = repo.GetByID(ctx, "ORD-0")
		require.NoError(t, err)
		assert.True(t, old.CreatedAt.Equal(o.CreatedAt))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, order.ErrNotFound)
		assert.ErrorIs(t, repo.MarkInvoiced(ctx, "missing"), order.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
