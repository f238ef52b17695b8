package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, name, surname, phone, state, items, total, confirmed, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR name ILIKE $2 OR surname ILIKE $2 OR phone ILIKE $2)
		  AND (NOT $3::boolean OR NOT confirmed)
		ORDER BY created_at DESC, id`

	setOrderConfirmedSQL = `UPDATE orders SET confirmed = $2 WHERE id = $1
		RETURNING ` + orderColumns

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Line items are stored in a JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Name, o.Surname, o.Phone, o.State, itemsJSON, o.Total, o.Confirmed, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// List returns orders newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, f.Search, likePattern(f.Search), f.UnconfirmedOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SetConfirmed updates the confirmation flag and returns the updated order.
func (r *OrderRepository) SetConfirmed(ctx context.Context, id string, confirmed bool) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, setOrderConfirmedSQL, id, confirmed)
	if err != nil {
		return nil, errors.Wrapf(err, "confirm order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "confirm order %q", id)
	}
	return &o, nil
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	if err := row.Scan(
		&o.ID, &o.Name, &o.Surname, &o.Phone, &o.State,
		&items, &o.Total, &o.Confirmed, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrapf(err, "decode items of order %q", o.ID)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}
