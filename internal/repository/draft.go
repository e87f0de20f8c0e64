package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/checkout"
)

const (
	getDraftSQL = `SELECT draft FROM checkout_drafts WHERE customer_id = $1`

	putDraftSQL = `INSERT INTO checkout_drafts (customer_id, draft, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (customer_id) DO UPDATE SET draft = EXCLUDED.draft, updated_at = now()`

	deleteDraftSQL = `DELETE FROM checkout_drafts WHERE customer_id = $1`
)

var _ checkout.Repository = (*DraftRepository)(nil)

// DraftRepository implements checkout.Repository backed by PostgreSQL.
// The draft is stored whole as a JSONB document; one row per customer.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository returns a DraftRepository that uses the given pool.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// Get returns the customer's draft, or checkout.ErrNoDraft when none exists.
func (r *DraftRepository) Get(ctx context.Context, customerID string) (*checkout.Draft, error) {
	var d checkout.Draft
	err := r.pool.QueryRow(ctx, getDraftSQL, customerID).Scan(&d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNoDraft
		}
		return nil, fmt.Errorf("getting draft: %w", err)
	}
	return &d, nil
}

// Put stores the draft, replacing any previous one for the same customer.
func (r *DraftRepository) Put(ctx context.Context, draft *checkout.Draft) error {
	_, err := r.pool.Exec(ctx, putDraftSQL, draft.CustomerID, draft)
	if err != nil {
		return fmt.Errorf("storing draft: %w", err)
	}
	return nil
}

// Delete removes the customer's draft. Deleting an absent draft is not an
// error.
func (r *DraftRepository) Delete(ctx context.Context, customerID string) error {
	_, err := r.pool.Exec(ctx, deleteDraftSQL, customerID)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}
