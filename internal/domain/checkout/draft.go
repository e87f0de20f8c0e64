package checkout

import (
	"time"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/pricing"
)

// Step tracks how far a checkout attempt has progressed. The progression is
// forward-only; re-editing an earlier step recomputes totals but a draft
// never reports a step it has not legitimately reached.
type Step string

const (
	StepItemsSelected    Step = "ITEMS_SELECTED"
	StepAddressSet       Step = "ADDRESS_SET"
	StepPaymentMethodSet Step = "PAYMENT_METHOD_SET"
	StepOrderPlaced      Step = "ORDER_PLACED"
)

// Selection is one requested cart line before variant resolution.
type Selection struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Draft is the working object for one checkout attempt. It is not
// authoritative: items are re-derived from the catalog on every edit, so a
// stale draft converges to current catalog state.
type Draft struct {
	ID              string                   `json:"id"`
	CustomerID      string                   `json:"customer_id"`
	Step            Step                     `json:"step"`
	Items           []pricing.LineItem       `json:"items"`
	ShippingAddress *address.Address         `json:"shipping_address,omitempty"`
	PaymentMethod   pricing.PaymentMethod    `json:"payment_method,omitempty"`
	Discount        *pricing.AppliedDiscount `json:"discount,omitempty"`
	Totals          pricing.Totals           `json:"totals"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// Snapshot is the immutable view of a finalized draft handed to order
// creation. Copies, not references: later draft or catalog edits must never
// alter an order in flight.
type Snapshot struct {
	DraftID       string                   `json:"draft_id"`
	CustomerID    string                   `json:"customer_id"`
	Items         []pricing.LineItem       `json:"items"`
	Address       address.Address          `json:"address"`
	PaymentMethod pricing.PaymentMethod    `json:"payment_method"`
	Discount      *pricing.AppliedDiscount `json:"discount,omitempty"`
	Totals        pricing.Totals           `json:"totals"`
}

func (d *Draft) snapshot() Snapshot {
	items := make([]pricing.LineItem, len(d.Items))
	copy(items, d.Items)

	var disc *pricing.AppliedDiscount
	if d.Discount != nil {
		c := *d.Discount
		disc = &c
	}

	return Snapshot{
		DraftID:       d.ID,
		CustomerID:    d.CustomerID,
		Items:         items,
		Address:       *d.ShippingAddress,
		PaymentMethod: d.PaymentMethod,
		Discount:      disc,
		Totals:        d.Totals,
	}
}
