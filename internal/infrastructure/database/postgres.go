package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adilzhm/order-service/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// EnsureSchema creates the orders tables if they do not exist yet.
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			order_id         uuid PRIMARY KEY,
			customer_id      uuid NOT NULL,
			shipping_address varchar(255) NOT NULL,
			status           varchar(50) NOT NULL,
			total_amount     numeric(10,2) NOT NULL,
			created_at       timestamptz NOT NULL,
			updated_at       timestamptz NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS order_items (
			item_id    uuid PRIMARY KEY,
			order_id   uuid NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
			product_id uuid NOT NULL,
			quantity   int NOT NULL,
			price      numeric(10,2) NOT NULL
		)`)
	return err
}

// Create persists the order and all its items in one transaction. The id and
// timestamps are generated here; the passed order is updated in place.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	o.OrderID = uuid.NewString()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, customer_id, shipping_address, status, total_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, o.OrderID, o.CustomerID, o.ShippingAddress, o.Status, o.TotalAmount, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (item_id, order_id, product_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5)
			`, uuid.NewString(), o.OrderID, it.ProductID, it.Quantity, it.UnitPrice)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	id, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}

	var o domain.Order
	err = r.pool.QueryRow(ctx, `
		SELECT order_id, customer_id, shipping_address, status, total_amount, created_at, updated_at
		FROM orders
		WHERE order_id=$1
		`, id).Scan(&o.OrderID, &o.CustomerID, &o.ShippingAddress, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, price
		FROM order_items
		WHERE order_id=$1
		`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus writes the status field only. Items and total_amount are never
// touched after creation.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	id, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status=$1, updated_at=$2 WHERE order_id=$3
		`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
