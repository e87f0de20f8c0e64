package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(price int64, qty int) LineItem {
	return LineItem{
		ProductID: "p1",
		VariantID: "v1",
		UnitPrice: decimal.NewFromInt(price),
		Currency:  "INR",
		Quantity:  qty,
	}
}

func TestCalculate(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name         string
		items        []LineItem
		method       PaymentMethod
		discount     *AppliedDiscount
		wantSubtotal int64
		wantShipping int64
		wantFee      int64
		wantDiscount int64
		wantTotal    int64
	}{
		{
			name:         "single item below free shipping",
			items:        []LineItem{item(1500, 2)},
			method:       MethodCard,
			wantSubtotal: 3000,
			wantShipping: 100,
			wantTotal:    3100,
		},
		{
			name:         "subtotal one below threshold still pays shipping",
			items:        []LineItem{item(4999, 1)},
			method:       MethodUPI,
			wantSubtotal: 4999,
			wantShipping: 100,
			wantTotal:    5099,
		},
		{
			name:         "subtotal exactly at threshold ships free",
			items:        []LineItem{item(5000, 1)},
			method:       MethodUPI,
			wantSubtotal: 5000,
			wantTotal:    5000,
		},
		{
			name:         "cash on delivery carries surcharge",
			items:        []LineItem{item(6000, 1)},
			method:       MethodCOD,
			wantSubtotal: 6000,
			wantFee:      50,
			wantTotal:    6050,
		},
		{
			name:   "flat discount",
			items:  []LineItem{item(2000, 1)},
			method: MethodCard,
			discount: &AppliedDiscount{
				Code: "SAVE200", Type: DiscountFlat, Value: decimal.NewFromInt(200),
			},
			wantSubtotal: 2000,
			wantShipping: 100,
			wantDiscount: 200,
			wantTotal:    1900,
		},
		{
			name:   "percentage discount capped at max",
			items:  []LineItem{item(10000, 1)},
			method: MethodCard,
			discount: &AppliedDiscount{
				Code: "TEN", Type: DiscountPercentage,
				Value:       decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(500),
			},
			wantSubtotal: 10000,
			wantDiscount: 500,
			wantTotal:    9500,
		},
		{
			name:   "discount below minimum subtotal is silently skipped",
			items:  []LineItem{item(3000, 1)},
			method: MethodCard,
			discount: &AppliedDiscount{
				Code: "BIG", Type: DiscountFlat,
				Value:       decimal.NewFromInt(1000),
				MinSubtotal: decimal.NewFromInt(5000),
			},
			wantSubtotal: 3000,
			wantShipping: 100,
			wantDiscount: 0,
			wantTotal:    3100,
		},
		{
			name:   "flat discount equal to subtotal leaves fees payable",
			items:  []LineItem{item(300, 1)},
			method: MethodCOD,
			discount: &AppliedDiscount{
				Code: "HUGE", Type: DiscountFlat, Value: decimal.NewFromInt(300),
			},
			wantSubtotal: 300,
			wantShipping: 100,
			wantFee:      50,
			wantDiscount: 300,
			wantTotal:    150,
		},
		{
			name:   "flat discount exceeding subtotal applies in full and clamps total at zero",
			items:  []LineItem{item(300, 1)},
			method: MethodCOD,
			discount: &AppliedDiscount{
				Code: "MEGA", Type: DiscountFlat, Value: decimal.NewFromInt(1000),
			},
			wantSubtotal: 300,
			wantShipping: 100,
			wantFee:      50,
			wantDiscount: 1000,
			wantTotal:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(cfg, tt.items, tt.method, tt.discount)
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.wantSubtotal).Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, decimal.NewFromInt(tt.wantShipping).Equal(got.ShippingFee), "shipping %s", got.ShippingFee)
			assert.True(t, decimal.NewFromInt(tt.wantFee).Equal(got.PaymentFee), "fee %s", got.PaymentFee)
			assert.True(t, decimal.NewFromInt(tt.wantDiscount).Equal(got.DiscountAmount), "discount %s", got.DiscountAmount)
			assert.True(t, decimal.NewFromInt(tt.wantTotal).Equal(got.Total), "total %s", got.Total)
			assert.False(t, got.Total.IsNegative())

			// Pure function: a second call yields identical totals.
			again, err := Calculate(cfg, tt.items, tt.method, tt.discount)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestCalculate_EmptyItems(t *testing.T) {
	got, err := Calculate(DefaultConfig(), nil, MethodCard, nil)
	require.NoError(t, err)
	assert.True(t, got.Total.IsZero())
	assert.Zero(t, got.ItemCount)
}

func TestCalculate_MixedCurrency(t *testing.T) {
	items := []LineItem{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(100), Currency: "INR", Quantity: 1},
		{ProductID: "p2", UnitPrice: decimal.NewFromInt(100), Currency: "USD", Quantity: 1},
	}
	_, err := Calculate(DefaultConfig(), items, MethodCard, nil)
	assert.ErrorIs(t, err, ErrMixedCurrency)
}
