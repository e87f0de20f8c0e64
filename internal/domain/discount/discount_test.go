package discount

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/checkout/internal/domain/pricing"
)

type mockRepo struct {
	rule          *Rule
	err           error
	incrementErr  error
	incrementCode string
}

func (m *mockRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name    string
		repo    *mockRepo
		code    string
		want    *pricing.AppliedDiscount
		wantErr error
	}{
		{
			name: "valid code returns applied discount",
			repo: &mockRepo{rule: &Rule{
				Code: "WELCOME10", Type: pricing.DiscountPercentage,
				Value:       decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(500),
				Description: "10% off",
			}},
			code: "WELCOME10",
			want: &pricing.AppliedDiscount{
				Code: "WELCOME10", Type: pricing.DiscountPercentage,
				Value:       decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(500),
				Description: "10% off",
			},
		},
		{
			name:    "unknown code",
			repo:    &mockRepo{err: ErrInvalidCode},
			code:    "BOGUS",
			wantErr: ErrInvalidCode,
		},
		{
			name: "not yet valid",
			repo: &mockRepo{rule: &Rule{
				Code: "SOON", Type: pricing.DiscountFlat,
				Value: decimal.NewFromInt(100), ValidFrom: &future,
			}},
			code:    "SOON",
			wantErr: ErrExpired,
		},
		{
			name: "expired",
			repo: &mockRepo{rule: &Rule{
				Code: "OLD", Type: pricing.DiscountFlat,
				Value: decimal.NewFromInt(100), ValidUntil: &past,
			}},
			code:    "OLD",
			wantErr: ErrExpired,
		},
		{
			name: "usage limit reached",
			repo: &mockRepo{rule: &Rule{
				Code: "LIMITED", Type: pricing.DiscountFlat,
				Value: decimal.NewFromInt(100), MaxUses: 5, Uses: 5,
			}},
			code:    "LIMITED",
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "unmet minimum subtotal is not an error at validation time",
			repo: &mockRepo{rule: &Rule{
				Code: "BIGCART", Type: pricing.DiscountFlat,
				Value:       decimal.NewFromInt(1000),
				MinSubtotal: decimal.NewFromInt(5000),
			}},
			code: "BIGCART",
			want: &pricing.AppliedDiscount{
				Code: "BIGCART", Type: pricing.DiscountFlat,
				Value:       decimal.NewFromInt(1000),
				MinSubtotal: decimal.NewFromInt(5000),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, tt.repo.incrementCode, "attaching a code must not consume a use")
		})
	}
}
