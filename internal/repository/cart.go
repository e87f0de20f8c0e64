package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/order"
)

const removeCartItemsSQL = `DELETE FROM cart_items WHERE customer_id = $1 AND variant_id = ANY($2)`

var _ order.CartRepository = (*CartRepository)(nil)

// CartRepository implements order.CartRepository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// RemoveItems deletes the given variant lines from the customer's cart.
// Removing lines that are already absent is not an error.
func (r *CartRepository) RemoveItems(ctx context.Context, customerID string, variantIDs []string) error {
	if len(variantIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, removeCartItemsSQL, customerID, variantIDs)
	if err != nil {
		return fmt.Errorf("removing cart items: %w", err)
	}
	return nil
}
