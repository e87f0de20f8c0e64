package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/address"
)

const (
	upsertAddressSQL = `INSERT INTO addresses (customer_id, fingerprint, address, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (customer_id, fingerprint) DO UPDATE SET
			address = EXCLUDED.address, updated_at = now()`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE
		WHERE customer_id = $1 AND is_default`

	setDefaultAddressSQL = `UPDATE addresses SET is_default = TRUE
		WHERE customer_id = $1 AND fingerprint = $2`

	listAddressesSQL = `SELECT address, is_default FROM addresses
		WHERE customer_id = $1 ORDER BY is_default DESC, updated_at DESC`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
// Rows are keyed by (customer, fingerprint) so re-saving the same address
// updates in place instead of duplicating it.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Upsert inserts or updates the row identified by fingerprint.
func (r *AddressRepository) Upsert(ctx context.Context, customerID, fingerprint string, addr address.Address) error {
	_, err := r.pool.Exec(ctx, upsertAddressSQL, customerID, fingerprint, addr)
	if err != nil {
		return fmt.Errorf("upserting address: %w", err)
	}
	return nil
}

// SetDefault marks one fingerprint as default and clears all others.
func (r *AddressRepository) SetDefault(ctx context.Context, customerID, fingerprint string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("setting default address: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, clearDefaultAddressSQL, customerID); err != nil {
		return fmt.Errorf("clearing default address: %w", err)
	}
	if _, err := tx.Exec(ctx, setDefaultAddressSQL, customerID, fingerprint); err != nil {
		return fmt.Errorf("setting default address: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("setting default address: %w", err)
	}
	return nil
}

// List returns the customer's saved addresses, default first.
func (r *AddressRepository) List(ctx context.Context, customerID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (address.Address, error) {
		var (
			addr      address.Address
			isDefault bool
		)
		err := row.Scan(&addr, &isDefault)
		addr.IsDefault = isDefault
		return addr, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return list, nil
}
