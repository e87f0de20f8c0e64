package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/threadline/checkout/internal/domain/catalog"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/pricing"
)

// DraftClearer drops a customer's checkout draft after order creation.
type DraftClearer interface {
	Clear(ctx context.Context, customerID string) error
}

// Service owns order creation and lifecycle transitions.
type Service struct {
	orders  Repository
	carts   CartRepository
	drafts  DraftClearer
	catalog catalog.Repository
	codes   CodeConsumer
}

// NewService creates an order Service with the required dependencies.
func NewService(orders Repository, carts CartRepository, drafts DraftClearer, cat catalog.Repository, codes CodeConsumer) *Service {
	return &Service{orders: orders, carts: carts, drafts: drafts, catalog: cat, codes: codes}
}

// PlaceCOD creates a cash-on-delivery order directly in PENDING; no gateway
// round-trip is involved. The insert is idempotent on the draft id, so a
// retried call converges on the same order and re-runs any side effect that
// failed the first time.
func (s *Service) PlaceCOD(ctx context.Context, snap checkout.Snapshot) (*Order, error) {
	if snap.PaymentMethod != pricing.MethodCOD {
		return nil, ErrGatewayPaymentRequired
	}
	if err := s.CheckInventory(ctx, snap.Items); err != nil {
		return nil, err
	}
	return s.create(ctx, snap, "draft:"+snap.DraftID, Payment{})
}

// MaterializeGatewayOrder creates the order row for a verified gateway
// payment. Callers MUST have verified the payment signature first; this
// method performs no verification of its own. The insert is keyed by the
// gateway order id, so a duplicate confirmation returns the already-created
// order instead of a second row.
func (s *Service) MaterializeGatewayOrder(ctx context.Context, snap checkout.Snapshot, pay Payment) (*Order, error) {
	if pay.GatewayOrderID == "" {
		return nil, errors.New("gateway order id required")
	}
	return s.create(ctx, snap, "gateway:"+pay.GatewayOrderID, pay)
}

// create inserts the order and runs the cart-clear and draft-clear side
// effects. The three are a unit from the caller's perspective: if a side
// effect fails the call reports failure even though the row exists, and the
// idempotent retry completes the remainder.
func (s *Service) create(ctx context.Context, snap checkout.Snapshot, idempotencyKey string, pay Payment) (*Order, error) {
	o := &Order{
		ID:            uuid.New().String(),
		CustomerID:    snap.CustomerID,
		Status:        StatusPending,
		Items:         snap.Items,
		Totals:        snap.Totals,
		Address:       snap.Address,
		PaymentMethod: snap.PaymentMethod,
		Payment:       pay,
	}

	stored, created, err := s.orders.InsertIfAbsent(ctx, idempotencyKey, o)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	// A use is consumed only on the insert that actually created the row;
	// the idempotent retry path must not double-count.
	if created && stored.Totals.DiscountCode != "" {
		if err := s.codes.IncrementUses(ctx, stored.Totals.DiscountCode); err != nil {
			return nil, errors.Wrap(err, "consume promo code use")
		}
	}

	variantIDs := make([]string, len(stored.Items))
	for i, item := range stored.Items {
		variantIDs[i] = item.VariantID
	}
	if err := s.carts.RemoveItems(ctx, stored.CustomerID, variantIDs); err != nil {
		return nil, errors.Wrap(err, "clear cart lines")
	}
	if err := s.drafts.Clear(ctx, stored.CustomerID); err != nil {
		return nil, errors.Wrap(err, "clear draft")
	}
	return stored, nil
}

// FindGatewayOrder returns the order already materialized for the given
// gateway order id, or ErrNotFound. Used to resolve retried confirmations
// whose intent has been consumed.
func (s *Service) FindGatewayOrder(ctx context.Context, gatewayOrderID string) (*Order, error) {
	return s.orders.GetByIdempotencyKey(ctx, "gateway:"+gatewayOrderID)
}

// CheckInventory verifies that every DENY-policy tracked variant covers the
// requested quantity. It is a separate, explicit step so the lenient
// variant resolution never masks an out-of-stock selection.
func (s *Service) CheckInventory(ctx context.Context, items []pricing.LineItem) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	variants := make(map[string]catalog.Variant)
	owners := make(map[string]string)
	for _, p := range products {
		for _, v := range p.Variants {
			variants[v.ID] = v
			owners[v.ID] = p.ID
		}
	}

	for _, item := range items {
		v, ok := variants[item.VariantID]
		if !ok {
			return errors.Wrapf(catalog.ErrNotFound, "variant %s", item.VariantID)
		}
		if !v.AvailableForSale(item.Quantity) {
			return &InsufficientStockError{
				ProductID: owners[item.VariantID],
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: v.QuantityAvailable,
			}
		}
	}
	return nil
}

// Transition applies a staff-driven status change as a compare-and-set
// against the expected current state. Illegal edges and stale expectations
// both fail with IllegalTransitionError; the caller re-reads and retries.
func (s *Service) Transition(ctx context.Context, orderID string, expected, next Status) (*Order, error) {
	if !CanTransition(expected, next) {
		return nil, &IllegalTransitionError{OrderID: orderID, From: expected, To: next}
	}
	updated, ok, err := s.orders.UpdateStatus(ctx, orderID, expected, next)
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	if !ok {
		current, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, errors.Wrap(err, "reload order")
		}
		return nil, &IllegalTransitionError{OrderID: orderID, From: current.Status, To: next}
	}
	return updated, nil
}

// SetShipment records staff-entered courier tracking metadata.
func (s *Service) SetShipment(ctx context.Context, orderID string, sh Shipment) (*Order, error) {
	updated, err := s.orders.UpdateShipment(ctx, orderID, sh)
	if err != nil {
		return nil, errors.Wrap(err, "update shipment")
	}
	return updated, nil
}

// GetByID returns one order.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListByCustomer returns the customer's orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}
