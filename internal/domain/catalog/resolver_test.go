package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jeansProduct() *Product {
	return &Product{
		ID:     "p1",
		Handle: "slim-jeans",
		Title:  "Slim Jeans",
		Variants: []Variant{
			{ID: "v1", Title: "Indigo / 30", Price: decimal.NewFromInt(2200), OptionValues: map[string]string{"Color": "Indigo", "Waist Size": "30"}},
			{ID: "v2", Title: "Indigo / 32", Price: decimal.NewFromInt(2200), OptionValues: map[string]string{"Color": "Indigo", "Waist Size": "32"}},
			{ID: "v3", Title: "Black / 32", Price: decimal.NewFromInt(2400), OptionValues: map[string]string{"Color": "Black", "Waist Size": "32"}},
		},
	}
}

func TestResolveVariant(t *testing.T) {
	tests := []struct {
		name    string
		product *Product
		token   string
		wantID  string
	}{
		{
			name:    "empty token returns first variant",
			product: jeansProduct(),
			token:   "",
			wantID:  "v1",
		},
		{
			name:    "size option value match",
			product: jeansProduct(),
			token:   "32",
			wantID:  "v2",
		},
		{
			name:    "size option match is case-insensitive and trimmed",
			product: jeansProduct(),
			token:   "  30 ",
			wantID:  "v1",
		},
		{
			name: "exact title match when option names are not size-like",
			product: &Product{
				ID: "p2",
				Variants: []Variant{
					{ID: "v1", Title: "Standard", OptionValues: map[string]string{"Style": "Standard"}},
					{ID: "v2", Title: "Tall", OptionValues: map[string]string{"Style": "Tall"}},
				},
			},
			token:  "tall",
			wantID: "v2",
		},
		{
			name:    "composite title segment match",
			product: jeansProduct(),
			token:   "black",
			wantID:  "v3",
		},
		{
			name:    "unmatched token falls back to first variant",
			product: jeansProduct(),
			token:   "XXL",
			wantID:  "v1",
		},
		{
			name: "malformed token still resolves",
			product: &Product{
				ID:       "p3",
				Variants: []Variant{{ID: "only", Title: "One Size"}},
			},
			token:  "///  //",
			wantID: "only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ResolveVariant(tt.product, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, v.ID)
		})
	}
}

func TestResolveVariant_NoVariants(t *testing.T) {
	_, err := ResolveVariant(&Product{ID: "bare"}, "M")
	assert.ErrorIs(t, err, ErrNoPurchasableVariant)
}

func TestVariantAvailableForSale(t *testing.T) {
	tracked := Variant{TrackInventory: true, InventoryPolicy: PolicyDeny, QuantityAvailable: 2}
	assert.True(t, tracked.AvailableForSale(2))
	assert.False(t, tracked.AvailableForSale(3))

	oversell := Variant{TrackInventory: true, InventoryPolicy: PolicyContinue}
	assert.True(t, oversell.AvailableForSale(99))

	untracked := Variant{TrackInventory: false, InventoryPolicy: PolicyDeny}
	assert.True(t, untracked.AvailableForSale(99))
}
