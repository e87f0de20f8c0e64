package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/checkout/internal/domain/request"
)

const (
	insertRequestSQL = `INSERT INTO post_purchase_requests
		(id, order_id, customer_id, type, item_ids, reason, comments, attachments,
		 bank_details, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	getRequestByIDSQL = requestColumns + ` WHERE id = $1`

	listRequestsByOrderSQL = requestColumns + ` WHERE order_id = $1 ORDER BY created_at`

	updateRequestStatusSQL = `UPDATE post_purchase_requests SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, order_id, customer_id, type, item_ids, reason, comments, attachments,
			bank_details, status, created_at, updated_at`

	requestColumns = `SELECT id, order_id, customer_id, type, item_ids, reason, comments,
		attachments, bank_details, status, created_at, updated_at
		FROM post_purchase_requests`
)

var _ request.Repository = (*RequestRepository)(nil)

// RequestRepository implements request.Repository backed by PostgreSQL.
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository returns a RequestRepository that uses the given pool.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

// Create persists a newly submitted request.
func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	_, err := r.pool.Exec(ctx, insertRequestSQL,
		req.ID, req.OrderID, req.CustomerID, string(req.Type),
		req.ItemIDs, string(req.Reason), req.Comments, req.Attachments,
		req.BankDetails, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

// GetByID returns a single request.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*request.Request, error) {
	rows, err := r.pool.Query(ctx, getRequestByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting request %s: %w", id, err)
	}
	req, err := pgx.CollectExactlyOneRow(rows, scanRequest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, request.ErrNotFound
		}
		return nil, fmt.Errorf("getting request %s: %w", id, err)
	}
	return &req, nil
}

// ListByOrder returns all requests raised against an order, oldest first.
func (r *RequestRepository) ListByOrder(ctx context.Context, orderID string) ([]request.Request, error) {
	rows, err := r.pool.Query(ctx, listRequestsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return list, nil
}

// UpdateStatus writes next only when the current status equals expected.
// A stale expected state yields (nil, false, nil).
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, expected, next request.Status) (*request.Request, bool, error) {
	rows, err := r.pool.Query(ctx, updateRequestStatusSQL, id, string(expected), string(next))
	if err != nil {
		return nil, false, fmt.Errorf("updating request status: %w", err)
	}
	req, err := pgx.CollectExactlyOneRow(rows, scanRequest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("updating request status: %w", err)
	}
	return &req, true, nil
}

func scanRequest(row pgx.CollectableRow) (request.Request, error) {
	var (
		req    request.Request
		rtype  string
		reason string
		status string
	)
	err := row.Scan(
		&req.ID, &req.OrderID, &req.CustomerID, &rtype,
		&req.ItemIDs, &reason, &req.Comments, &req.Attachments,
		&req.BankDetails, &status, &req.CreatedAt, &req.UpdatedAt,
	)
	req.Type = request.Type(rtype)
	req.Reason = request.Reason(reason)
	req.Status = request.Status(status)
	return req, err
}
