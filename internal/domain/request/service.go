package request

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/threadline/checkout/internal/domain/order"
)

// OrderReader loads the order a request targets.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// Submission is the customer's input for a new request.
type Submission struct {
	Type        Type
	ItemIDs     []string
	Reason      Reason
	Comments    string
	Attachments []string
	BankDetails *BankDetails
}

// Service validates and records post-purchase requests. A submitted request
// never mutates the order: staff approve it and then apply a normal order
// transition, so submission is not assumed to equal approval.
type Service struct {
	requests Repository
	orders   OrderReader
	now      func() time.Time
}

// NewService creates a request Service.
func NewService(requests Repository, orders OrderReader) *Service {
	return &Service{requests: requests, orders: orders, now: time.Now}
}

// eligible returns nil when the request type is legal for the order status.
func eligible(t Type, st order.Status) error {
	switch t {
	case TypeCancel:
		if st == order.StatusPending || st == order.StatusPaid {
			return nil
		}
		if st == order.StatusFulfilled {
			return &NotEligibleError{Type: t, OrderStatus: st, Hint: "order already fulfilled, use RETURN instead"}
		}
	case TypeReturn, TypeExchange:
		if st == order.StatusFulfilled {
			return nil
		}
	}
	return &NotEligibleError{Type: t, OrderStatus: st}
}

// Submit validates eligibility and fields, then records the request in
// SUBMITTED status.
func (s *Service) Submit(ctx context.Context, customerID, orderID string, sub Submission) (*Request, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, order.ErrNotFound
	}

	if err := eligible(sub.Type, o.Status); err != nil {
		return nil, err
	}

	if len(sub.ItemIDs) == 0 {
		return nil, &ValidationError{Field: "item_ids", Reason: "at least one item must be selected"}
	}
	for _, id := range sub.ItemIDs {
		if !o.HasItem(id) {
			return nil, &ValidationError{Field: "item_ids", Reason: "item " + id + " does not belong to this order"}
		}
	}
	if !reasons[sub.Reason] {
		return nil, &ValidationError{Field: "reason", Reason: "must be one of the listed reasons"}
	}
	if sub.Reason == ReasonOther && sub.Comments == "" {
		return nil, &ValidationError{Field: "comments", Reason: "required when reason is OTHER"}
	}

	// A return implies a refund payout, so it alone requires bank details.
	if sub.Type == TypeReturn {
		if sub.BankDetails == nil || !sub.BankDetails.complete() {
			return nil, &ValidationError{Field: "bank_details", Reason: "complete bank details required for a return"}
		}
	}

	now := s.now()
	r := &Request{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		CustomerID:  customerID,
		Type:        sub.Type,
		ItemIDs:     sub.ItemIDs,
		Reason:      sub.Reason,
		Comments:    sub.Comments,
		Attachments: sub.Attachments,
		BankDetails: sub.BankDetails,
		Status:      StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return r, nil
}

// Progress applies a staff-driven request status change as a compare-and-set.
// Illegal edges and stale expectations both fail with IllegalTransitionError.
func (s *Service) Progress(ctx context.Context, requestID string, expected, next Status) (*Request, error) {
	legal := false
	for _, st := range statusTransitions[expected] {
		if st == next {
			legal = true
			break
		}
	}
	if !legal {
		return nil, &IllegalTransitionError{RequestID: requestID, From: expected, To: next}
	}
	updated, ok, err := s.requests.UpdateStatus(ctx, requestID, expected, next)
	if err != nil {
		return nil, errors.Wrap(err, "update request status")
	}
	if !ok {
		current, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			return nil, errors.Wrap(err, "reload request")
		}
		return nil, &IllegalTransitionError{RequestID: requestID, From: current.Status, To: next}
	}
	return updated, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	return s.requests.GetByID(ctx, id)
}

// ListByOrder returns all requests filed against an order.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Request, error) {
	return s.requests.ListByOrder(ctx, orderID)
}
