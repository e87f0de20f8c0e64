package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/pricing"
)

var (
	// ErrNoIntent is returned when no payment intent exists for the caller.
	ErrNoIntent = errors.New("no payment intent")
	// ErrTotalsMismatch is returned when the client-submitted total
	// diverges from the server-derived total beyond rounding tolerance.
	ErrTotalsMismatch = errors.New("submitted totals do not match server-derived totals")
	// ErrCODNotPayable is returned when a gateway intent is requested for a
	// cash-on-delivery draft.
	ErrCODNotPayable = errors.New("cash on delivery does not use the payment gateway")
)

// totalsTolerance absorbs client-side rounding; anything beyond it is
// rejected rather than trusted.
var totalsTolerance = decimal.NewFromFloat(0.01)

// Intent ties an in-progress gateway payment to its finalized draft
// snapshot. Retries reuse the stored gateway order id until the intent is
// dropped, so a network failure never double-authorizes. The persisted row
// is also the scan hook for reconciling payments whose confirmation never
// arrived.
type Intent struct {
	CustomerID     string            `json:"customer_id"`
	DraftID        string            `json:"draft_id"`
	GatewayOrderID string            `json:"gateway_order_id"`
	AmountMinor    int64             `json:"amount_minor"`
	Currency       string            `json:"currency"`
	Snapshot       checkout.Snapshot `json:"snapshot"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IntentRepository persists payment intents.
type IntentRepository interface {
	Put(ctx context.Context, intent *Intent) error
	// GetByCustomer returns ErrNoIntent when none exists.
	GetByCustomer(ctx context.Context, customerID string) (*Intent, error)
	Delete(ctx context.Context, customerID string) error
}

// DraftFinalizer produces the immutable snapshot for order creation.
// Implemented by the checkout store.
type DraftFinalizer interface {
	Finalize(ctx context.Context, customerID string) (*checkout.Snapshot, error)
}

// Materializer creates the order row after verification. Implemented by the
// order service.
type Materializer interface {
	MaterializeGatewayOrder(ctx context.Context, snap checkout.Snapshot, pay order.Payment) (*order.Order, error)
	// FindGatewayOrder returns the order already materialized for the gateway
	// order id, or order.ErrNotFound.
	FindGatewayOrder(ctx context.Context, gatewayOrderID string) (*order.Order, error)
	CheckInventory(ctx context.Context, items []pricing.LineItem) error
}

// CheckoutPayload is what the client needs to open the gateway's hosted
// collection UI.
type CheckoutPayload struct {
	KeyID          string `json:"key_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

// Service drives the gateway payment round-trip: intent creation, signature
// verification, and idempotent order materialization.
type Service struct {
	gateway  Gateway
	verifier *Verifier
	intents  IntentRepository
	drafts   DraftFinalizer
	orders   Materializer
	cfg      pricing.Config
	keyID    string
}

// NewService creates a payment Service.
func NewService(gw Gateway, verifier *Verifier, intents IntentRepository, drafts DraftFinalizer, orders Materializer, cfg pricing.Config, keyID string) *Service {
	return &Service{
		gateway:  gw,
		verifier: verifier,
		intents:  intents,
		drafts:   drafts,
		orders:   orders,
		cfg:      cfg,
		keyID:    keyID,
	}
}

// CreateIntent finalizes the draft, checks inventory, creates a gateway
// order for the exact total in minor units, and persists the intent. When an
// intent for the same draft AND the same amount already exists, its gateway
// order is reused instead of authorizing a second time; an intent whose
// amount no longer matches the draft (the customer edited items after the
// first request) is stale and is replaced with a fresh gateway order.
func (s *Service) CreateIntent(ctx context.Context, customerID string) (*CheckoutPayload, error) {
	snap, err := s.drafts.Finalize(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if snap.PaymentMethod == pricing.MethodCOD {
		return nil, ErrCODNotPayable
	}
	if err := s.orders.CheckInventory(ctx, snap.Items); err != nil {
		return nil, err
	}

	amountMinor := snap.Totals.Total.Mul(decimal.NewFromInt(100)).IntPart()

	existing, err := s.intents.GetByCustomer(ctx, customerID)
	switch {
	case err == nil && existing.DraftID == snap.DraftID &&
		existing.AmountMinor == amountMinor && existing.Currency == snap.Totals.Currency:
		// Same draft, same amount: keep the gateway order but refresh the
		// snapshot so edits that preserved the total still materialize as
		// the customer last saw them.
		existing.Snapshot = *snap
		if err := s.intents.Put(ctx, existing); err != nil {
			return nil, errors.Wrap(err, "refresh intent")
		}
		return s.payload(existing), nil
	case err != nil && !errors.Is(err, ErrNoIntent):
		return nil, errors.Wrap(err, "load intent")
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amountMinor, snap.Totals.Currency, snap.DraftID)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	intent := &Intent{
		CustomerID:     customerID,
		DraftID:        snap.DraftID,
		GatewayOrderID: gatewayOrderID,
		AmountMinor:    amountMinor,
		Currency:       snap.Totals.Currency,
		Snapshot:       *snap,
		CreatedAt:      time.Now(),
	}
	if err := s.intents.Put(ctx, intent); err != nil {
		return nil, errors.Wrap(err, "store intent")
	}
	return s.payload(intent), nil
}

func (s *Service) payload(intent *Intent) *CheckoutPayload {
	return &CheckoutPayload{
		KeyID:          s.keyID,
		GatewayOrderID: intent.GatewayOrderID,
		AmountMinor:    intent.AmountMinor,
		Currency:       intent.Currency,
		Name:           intent.Snapshot.Address.Name,
		Email:          intent.Snapshot.Address.Email,
		Phone:          intent.Snapshot.Address.Phone,
	}
}

// Confirm verifies the gateway signature and, only on success, re-derives
// the totals server-side and materializes the order. Verification failure
// is final for the attempt; the draft and intent stay intact so the user
// can retry collection or switch methods.
func (s *Service) Confirm(ctx context.Context, customerID, gatewayOrderID, gatewayPaymentID, signature string, clientTotal decimal.Decimal) (*order.Order, error) {
	// Signature first. Nothing is created or advanced before this passes.
	if err := s.verifier.Verify(gatewayOrderID, gatewayPaymentID, signature); err != nil {
		return nil, err
	}

	intent, err := s.intents.GetByCustomer(ctx, customerID)
	if errors.Is(err, ErrNoIntent) || (err == nil && intent.GatewayOrderID != gatewayOrderID) {
		// A verified confirmation with no matching intent is usually a
		// retry of one that already materialized: the first confirm dropped
		// the intent. Resolve to the existing order instead of erroring so
		// the retry converges on the same result.
		if o, lookupErr := s.orders.FindGatewayOrder(ctx, gatewayOrderID); lookupErr == nil {
			return o, nil
		}
		return nil, ErrNoIntent
	}
	if err != nil {
		return nil, err
	}

	// Re-derive the totals from the stored snapshot rather than trusting
	// the client-submitted figures.
	derived, err := pricing.Calculate(s.cfg, intent.Snapshot.Items, intent.Snapshot.PaymentMethod, intent.Snapshot.Discount)
	if err != nil {
		return nil, errors.Wrap(err, "derive totals")
	}
	if derived.Total.Sub(clientTotal).Abs().GreaterThan(totalsTolerance) {
		return nil, ErrTotalsMismatch
	}

	snap := intent.Snapshot
	snap.Totals = derived
	o, err := s.orders.MaterializeGatewayOrder(ctx, snap, order.Payment{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.intents.Delete(ctx, customerID); err != nil {
		return nil, errors.Wrap(err, "drop intent")
	}
	return o, nil
}

// Abandon handles the caller-visible cancellation path: the user dismissed
// the collection UI or the gateway reported failure. The intent is dropped
// and the draft is preserved for a retry with another method.
func (s *Service) Abandon(ctx context.Context, customerID string) error {
	err := s.intents.Delete(ctx, customerID)
	if err != nil && !errors.Is(err, ErrNoIntent) {
		return errors.Wrap(err, "drop intent")
	}
	return nil
}
