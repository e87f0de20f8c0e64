package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/pricing"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, idempotency_key, customer_id, status, items, totals, address, shipment,
		 payment_method, gateway_order_id, gateway_payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (idempotency_key) DO NOTHING`

	getOrderByKeySQL = orderColumns + ` WHERE idempotency_key = $1`

	getOrderByIDSQL = orderColumns + ` WHERE id = $1`

	listOrdersByCustomerSQL = orderColumns + ` WHERE customer_id = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, number, customer_id, status, items, totals, address, shipment,
			payment_method, gateway_order_id, gateway_payment_id, created_at, updated_at`

	updateOrderShipmentSQL = `UPDATE orders SET shipment = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, number, customer_id, status, items, totals, address, shipment,
			payment_method, gateway_order_id, gateway_payment_id, created_at, updated_at`

	orderColumns = `SELECT id, number, customer_id, status, items, totals, address, shipment,
		payment_method, gateway_order_id, gateway_payment_id, created_at, updated_at
		FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// numbers are assigned by the database from a sequence on first insert.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InsertIfAbsent inserts o keyed by idempotencyKey and returns the stored
// row. A concurrent or earlier insert under the same key wins: the existing
// order is returned with created = false and o is discarded.
func (r *OrderRepository) InsertIfAbsent(ctx context.Context, idempotencyKey string, o *order.Order) (*order.Order, bool, error) {
	tag, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, idempotencyKey, o.CustomerID, string(o.Status),
		o.Items, o.Totals, o.Address, o.Shipment,
		string(o.PaymentMethod), o.Payment.GatewayOrderID, o.Payment.GatewayPaymentID,
		o.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting order: %w", err)
	}
	created := tag.RowsAffected() > 0

	rows, err := r.pool.Query(ctx, getOrderByKeySQL, idempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("reading back order: %w", err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, false, fmt.Errorf("reading back order: %w", err)
	}
	return &stored, created, nil
}

// GetByIdempotencyKey returns the order created under the given key, or
// order.ErrNotFound.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByKeySQL, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("getting order by key: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order by key: %w", err)
	}
	return &o, nil
}

// UpdateStatus writes next only when the current status equals expected.
// A stale expected state yields (nil, false, nil).
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expected, next order.Status) (*order.Order, bool, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, string(expected), string(next))
	if err != nil {
		return nil, false, fmt.Errorf("updating order status: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("updating order status: %w", err)
	}
	return &o, true, nil
}

// UpdateShipment replaces the shipment metadata on an order.
func (r *OrderRepository) UpdateShipment(ctx context.Context, id string, sh order.Shipment) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderShipmentSQL, id, sh)
	if err != nil {
		return nil, fmt.Errorf("updating order shipment: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order shipment: %w", err)
	}
	return &o, nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	return &o, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return list, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
		method string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &status,
		&o.Items, &o.Totals, &o.Address, &o.Shipment,
		&method, &o.Payment.GatewayOrderID, &o.Payment.GatewayPaymentID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = pricing.PaymentMethod(method)
	return o, err
}
