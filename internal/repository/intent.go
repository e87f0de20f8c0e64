package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/payment"
)

const (
	getIntentSQL = `SELECT customer_id, draft_id, gateway_order_id, amount_minor, currency,
		snapshot, created_at
		FROM payment_intents WHERE customer_id = $1`

	putIntentSQL = `INSERT INTO payment_intents
		(customer_id, draft_id, gateway_order_id, amount_minor, currency, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id) DO UPDATE SET
			draft_id = EXCLUDED.draft_id,
			gateway_order_id = EXCLUDED.gateway_order_id,
			amount_minor = EXCLUDED.amount_minor,
			currency = EXCLUDED.currency,
			snapshot = EXCLUDED.snapshot,
			created_at = EXCLUDED.created_at`

	deleteIntentSQL = `DELETE FROM payment_intents WHERE customer_id = $1`
)

var _ payment.IntentRepository = (*IntentRepository)(nil)

// IntentRepository implements payment.IntentRepository backed by PostgreSQL.
// A customer has at most one open intent; creating a new one replaces it.
type IntentRepository struct {
	pool *pgxpool.Pool
}

// NewIntentRepository returns an IntentRepository that uses the given pool.
func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

// Put stores the intent, replacing any open one for the same customer.
func (r *IntentRepository) Put(ctx context.Context, intent *payment.Intent) error {
	_, err := r.pool.Exec(ctx, putIntentSQL,
		intent.CustomerID, intent.DraftID, intent.GatewayOrderID,
		intent.AmountMinor, intent.Currency, intent.Snapshot, intent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storing payment intent: %w", err)
	}
	return nil
}

// GetByCustomer returns the customer's open intent, or payment.ErrNoIntent
// when none exists.
func (r *IntentRepository) GetByCustomer(ctx context.Context, customerID string) (*payment.Intent, error) {
	var in payment.Intent
	err := r.pool.QueryRow(ctx, getIntentSQL, customerID).Scan(
		&in.CustomerID, &in.DraftID, &in.GatewayOrderID, &in.AmountMinor,
		&in.Currency, &in.Snapshot, &in.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNoIntent
		}
		return nil, fmt.Errorf("getting payment intent: %w", err)
	}
	return &in, nil
}

// Delete removes the customer's open intent, if any.
func (r *IntentRepository) Delete(ctx context.Context, customerID string) error {
	_, err := r.pool.Exec(ctx, deleteIntentSQL, customerID)
	if err != nil {
		return fmt.Errorf("deleting payment intent: %w", err)
	}
	return nil
}
