package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrMixedCurrency is returned when line items do not share a single
// currency. This is a defect upstream, not a user-correctable condition.
var ErrMixedCurrency = errors.New("mixed currencies in cart")

// DefaultCurrency is the single deployment currency. The engine still
// rejects mixed-currency carts so a misconfigured catalog fails loudly.
const DefaultCurrency = "INR"

// PaymentMethod enumerates the supported ways to pay for an order.
type PaymentMethod string

const (
	MethodCOD        PaymentMethod = "COD"
	MethodCard       PaymentMethod = "CARD"
	MethodUPI        PaymentMethod = "UPI"
	MethodNetBanking PaymentMethod = "NETBANKING"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCOD, MethodCard, MethodUPI, MethodNetBanking:
		return true
	}
	return false
}

// Config holds the pricing constants for a deployment.
type Config struct {
	// FreeShippingThreshold is the subtotal at which shipping becomes free.
	// The boundary is inclusive: a subtotal equal to the threshold ships free.
	FreeShippingThreshold decimal.Decimal
	// StandardShippingFee is the flat fee below the threshold.
	StandardShippingFee decimal.Decimal
	// Surcharges maps a payment method to its fixed fee. Methods absent
	// from the map carry no fee.
	Surcharges map[PaymentMethod]decimal.Decimal
}

// DefaultConfig returns the observed production constants: free shipping at
// 5000, a flat 100 below it, and a 50 cash-on-delivery surcharge.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(5000),
		StandardShippingFee:   decimal.NewFromInt(100),
		Surcharges: map[PaymentMethod]decimal.Decimal{
			MethodCOD: decimal.NewFromInt(50),
		},
	}
}

// LineItem is one product/variant/quantity triple with its resolved price.
type LineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  string          `json:"currency"`
	Quantity  int             `json:"quantity"`
}

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	// DiscountFlat subtracts a fixed amount.
	DiscountFlat DiscountType = "flat"
	// DiscountPercentage subtracts a percentage of the subtotal, capped at
	// MaxDiscount when set.
	DiscountPercentage DiscountType = "percentage"
)

// AppliedDiscount is a discount attached to a draft, resolved from a promo
// code. MinSubtotal gates application: an unmet minimum means the discount
// silently contributes zero.
type AppliedDiscount struct {
	Code        string          `json:"code"`
	Type        DiscountType    `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
	Description string          `json:"description,omitempty"`
}

// Totals is the complete pricing breakdown for a draft or order.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	PaymentFee     decimal.Decimal `json:"payment_fee"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	ItemCount      int             `json:"item_count"`
}

var hundred = decimal.NewFromInt(100)

// Calculate derives the totals breakdown for the given items, payment method
// and optional discount. It is pure and safe for concurrent use.
//
// The computation order is fixed: subtotal, shipping fee, payment surcharge,
// discount, then the final clamp at zero. Callers displaying intermediate
// values depend on this sequence.
func Calculate(cfg Config, items []LineItem, method PaymentMethod, applied *AppliedDiscount) (Totals, error) {
	var t Totals
	if len(items) == 0 {
		// Zero totals; progression past item selection is blocked upstream.
		return t, nil
	}

	t.Currency = items[0].Currency
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Currency != t.Currency {
			return Totals{}, ErrMixedCurrency
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		t.ItemCount += item.Quantity
	}
	t.Subtotal = subtotal

	if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		t.ShippingFee = decimal.Zero
	} else {
		t.ShippingFee = cfg.StandardShippingFee
	}

	if fee, ok := cfg.Surcharges[method]; ok {
		t.PaymentFee = fee
	} else {
		t.PaymentFee = decimal.Zero
	}

	t.DiscountAmount = decimal.Zero
	if applied != nil && subtotal.GreaterThanOrEqual(applied.MinSubtotal) {
		t.DiscountAmount = discountAmount(applied, subtotal)
		t.DiscountCode = applied.Code
	}

	total := subtotal.Add(t.ShippingFee).Add(t.PaymentFee).Sub(t.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	t.Total = total.Round(2)
	t.DiscountAmount = t.DiscountAmount.Round(2)
	return t, nil
}

func discountAmount(d *AppliedDiscount, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(hundred)
		if d.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, d.MaxDiscount)
		}
	case DiscountFlat:
		// The full flat amount applies; only the final total is clamped at
		// zero, so a discount larger than the cart zeroes the order.
		amount = d.Value
	default:
		amount = decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
