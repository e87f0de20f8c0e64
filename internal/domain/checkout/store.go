package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/catalog"
	"github.com/threadline/checkout/internal/domain/discount"
	"github.com/threadline/checkout/internal/domain/pricing"
)

// Checkout-entry guards and progression errors.
var (
	// ErrEmptySelection is returned when checkout begins with no items.
	ErrEmptySelection = errors.New("no items selected")
	// ErrInvalidPricing is returned when a resolved item carries a
	// non-positive price, guarding against stale catalog data.
	ErrInvalidPricing = errors.New("item has non-positive price")
	// ErrNoDraft is returned when the customer has no checkout in progress.
	ErrNoDraft = errors.New("no checkout draft")
	// ErrAddressRequired is returned when a step needs a validated address first.
	ErrAddressRequired = errors.New("shipping address not set")
	// ErrPaymentMethodRequired is returned on finalize without a method.
	ErrPaymentMethodRequired = errors.New("payment method not set")
	// ErrInvalidPaymentMethod is returned for an unknown method token.
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
)

// Repository persists drafts keyed by customer. Single writer per customer
// session is assumed; no locking here.
type Repository interface {
	Get(ctx context.Context, customerID string) (*Draft, error)
	Put(ctx context.Context, draft *Draft) error
	Delete(ctx context.Context, customerID string) error
}

// Store drives a checkout attempt through its steps, recomputing totals on
// every mutation. Every validation failure leaves the persisted draft
// untouched.
type Store struct {
	drafts    Repository
	catalog   catalog.Repository
	discounts discount.Validator
	cfg       pricing.Config
	now       func() time.Time
}

// NewStore creates a checkout Store with its injected dependencies.
func NewStore(drafts Repository, cat catalog.Repository, discounts discount.Validator, cfg pricing.Config) *Store {
	return &Store{drafts: drafts, catalog: cat, discounts: discounts, cfg: cfg, now: time.Now}
}

// Begin starts (or restarts) a checkout from the selected cart lines. Items
// are resolved against the current catalog; a prior draft's address,
// payment method and discount survive, with totals recomputed.
func (s *Store) Begin(ctx context.Context, customerID string, selections []Selection) (*Draft, error) {
	if len(selections) == 0 {
		return nil, ErrEmptySelection
	}

	items, err := s.resolveItems(ctx, selections)
	if err != nil {
		return nil, err
	}

	draft, err := s.drafts.Get(ctx, customerID)
	if err != nil {
		if !errors.Is(err, ErrNoDraft) {
			return nil, errors.Wrap(err, "load draft")
		}
		draft = &Draft{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Step:       StepItemsSelected,
			CreatedAt:  s.now(),
		}
	}

	next := *draft
	next.Items = items
	// Editing items invalidates later steps' totals; the step itself is
	// kept so the customer resumes where they were.
	if err := s.recompute(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.drafts.Put(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "store draft")
	}
	return &next, nil
}

// SetAddress validates and attaches the shipping address, recomputes the
// shipping fee against the current subtotal, and advances the step.
func (s *Store) SetAddress(ctx context.Context, customerID string, addr address.Address) (*Draft, error) {
	draft, err := s.get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	next := *draft
	next.ShippingAddress = &addr
	if next.Step == StepItemsSelected {
		next.Step = StepAddressSet
	}
	if err := s.recompute(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.drafts.Put(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "store draft")
	}
	return &next, nil
}

// SetPaymentMethod attaches the payment method, recomputes the surcharge
// and total, and advances the step. An address must be set first.
func (s *Store) SetPaymentMethod(ctx context.Context, customerID string, method pricing.PaymentMethod) (*Draft, error) {
	draft, err := s.get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if draft.ShippingAddress == nil {
		return nil, ErrAddressRequired
	}
	if err := draft.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	next := *draft
	next.PaymentMethod = method
	if next.Step == StepAddressSet {
		next.Step = StepPaymentMethodSet
	}
	if err := s.recompute(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.drafts.Put(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "store draft")
	}
	return &next, nil
}

// ApplyDiscount validates the promo code and attaches it to the draft.
// A code whose minimum subtotal is unmet still attaches; it contributes
// zero until the cart qualifies.
func (s *Store) ApplyDiscount(ctx context.Context, customerID, code string) (*Draft, error) {
	draft, err := s.get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	applied, err := s.discounts.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	next := *draft
	next.Discount = applied
	if err := s.recompute(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.drafts.Put(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "store draft")
	}
	return &next, nil
}

// Finalize re-validates every invariant one last time and returns an
// immutable snapshot for order creation. The draft itself is untouched;
// order creation clears it only after the order exists.
//
// The re-validation defends against time-of-check/time-of-use drift when a
// draft is resumed after a delay.
func (s *Store) Finalize(ctx context.Context, customerID string) (*Snapshot, error) {
	draft, err := s.get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(draft.Items) == 0 {
		return nil, ErrEmptySelection
	}
	for _, item := range draft.Items {
		if !item.UnitPrice.IsPositive() {
			return nil, errors.Wrapf(ErrInvalidPricing, "product %s", item.ProductID)
		}
	}
	if draft.ShippingAddress == nil {
		return nil, ErrAddressRequired
	}
	if err := draft.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	if !draft.PaymentMethod.Valid() {
		return nil, ErrPaymentMethodRequired
	}
	if err := s.recompute(draft); err != nil {
		return nil, err
	}

	snap := draft.snapshot()
	return &snap, nil
}

// Get returns the customer's current draft.
func (s *Store) Get(ctx context.Context, customerID string) (*Draft, error) {
	return s.get(ctx, customerID)
}

// Clear drops the draft, used on explicit abandonment and after order
// creation.
func (s *Store) Clear(ctx context.Context, customerID string) error {
	return s.drafts.Delete(ctx, customerID)
}

func (s *Store) get(ctx context.Context, customerID string) (*Draft, error) {
	draft, err := s.drafts.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNoDraft) {
			return nil, ErrNoDraft
		}
		return nil, errors.Wrap(err, "load draft")
	}
	return draft, nil
}

// recompute re-runs the pricing engine over the draft's current state.
func (s *Store) recompute(d *Draft) error {
	totals, err := pricing.Calculate(s.cfg, d.Items, d.PaymentMethod, d.Discount)
	if err != nil {
		return err
	}
	d.Totals = totals
	return nil
}

func (s *Store) resolveItems(ctx context.Context, selections []Selection) ([]pricing.LineItem, error) {
	ids := make([]string, len(selections))
	for i, sel := range selections {
		if sel.Quantity <= 0 {
			return nil, errors.Wrapf(ErrEmptySelection, "product %s", sel.ProductID)
		}
		ids[i] = sel.ProductID
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*catalog.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	items := make([]pricing.LineItem, 0, len(selections))
	for _, sel := range selections {
		p, ok := byID[sel.ProductID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "product %s", sel.ProductID)
		}
		variant, err := catalog.ResolveVariant(p, sel.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "product %s", sel.ProductID)
		}
		if !variant.Price.IsPositive() {
			return nil, errors.Wrapf(ErrInvalidPricing, "product %s", sel.ProductID)
		}
		items = append(items, pricing.LineItem{
			ProductID: p.ID,
			VariantID: variant.ID,
			Name:      p.Title,
			Size:      sel.Size,
			UnitPrice: variant.Price,
			Currency:  pricing.DefaultCurrency,
			Quantity:  sel.Quantity,
		})
	}
	return items, nil
}
