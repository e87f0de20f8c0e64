package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/pricing"
)

// Status is the order lifecycle state.
type Status string

const (
	// StatusPending: order exists, payment not yet confirmed (gateway) or
	// confirmed-on-creation (cash on delivery).
	StatusPending Status = "PENDING"
	// StatusPaid: payment confirmed.
	StatusPaid Status = "PAID"
	// StatusFulfilled: delivered. Terminal.
	StatusFulfilled Status = "FULFILLED"
	// StatusCancelled: reachable from PENDING or PAID only. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus converts a wire token to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusFulfilled, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// transitions is the complete edge set of the lifecycle state machine.
// FULFILLED and CANCELLED have no outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusFulfilled, StatusCancelled},
	StatusFulfilled: {},
	StatusCancelled: {},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IllegalTransitionError reports a rejected state-machine move. Invalid
// requests are rejected, never clamped to the nearest legal state.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// InsufficientStockError reports a DENY-policy variant that cannot cover
// the requested quantity.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("variant %s of product %s: %d requested, %d available",
		e.VariantID, e.ProductID, e.Requested, e.Available)
}

// Shipment holds staff-populated courier metadata.
type Shipment struct {
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	CourierName       string     `json:"courier_name,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Payment records the gateway handles for an online-paid order.
type Payment struct {
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}

// Order is the durable result of a successful checkout. Items and totals
// are snapshots: later catalog edits never alter historical orders. Orders
// are never deleted, only transitioned to CANCELLED.
type Order struct {
	ID            string                `json:"id"`
	Number        string                `json:"number"`
	CustomerID    string                `json:"customer_id"`
	Status        Status                `json:"status"`
	Items         []pricing.LineItem    `json:"items"`
	Totals        pricing.Totals        `json:"totals"`
	Address       address.Address       `json:"address"`
	Shipment      Shipment              `json:"shipment"`
	PaymentMethod pricing.PaymentMethod `json:"payment_method"`
	Payment       Payment               `json:"payment"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// HasItem reports whether the order contains the given line item id
// (variant id within this order's snapshot).
func (o *Order) HasItem(variantID string) bool {
	for _, item := range o.Items {
		if item.VariantID == variantID {
			return true
		}
	}
	return false
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrGatewayPaymentRequired is returned when direct placement is attempted
// for a draft whose payment method settles through the gateway.
var ErrGatewayPaymentRequired = errors.New("payment method requires the gateway payment flow")

// Repository defines persistence operations for orders.
type Repository interface {
	// InsertIfAbsent performs an at-most-once insert keyed by idempotencyKey.
	// When a row for the key already exists, the existing order is returned
	// with created=false and o is not written.
	InsertIfAbsent(ctx context.Context, idempotencyKey string, o *Order) (stored *Order, created bool, err error)
	// GetByIdempotencyKey returns the order created under the given key, or
	// ErrNotFound.
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Order, error)
	// UpdateStatus is a compare-and-set: it writes next only when the
	// current status equals expected, returning the updated order. A stale
	// expected state yields (nil, false, nil).
	UpdateStatus(ctx context.Context, id string, expected, next Status) (*Order, bool, error)
	UpdateShipment(ctx context.Context, id string, sh Shipment) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
}

// CartRepository removes purchased lines from the customer's cart after
// order creation.
type CartRepository interface {
	RemoveItems(ctx context.Context, customerID string, variantIDs []string) error
}

// CodeConsumer burns one use of a promo code. Called once per created order
// that carries the code; validation and draft attachment never consume uses.
type CodeConsumer interface {
	IncrementUses(ctx context.Context, code string) error
}
