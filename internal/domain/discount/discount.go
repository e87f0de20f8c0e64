package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/pricing"
)

var (
	// ErrInvalidCode is returned when a promo code is unknown or inactive.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrExpired is returned when a code is outside its valid time window.
	ErrExpired = errors.New("promo code expired")
	// ErrUsageLimitReached is returned when a code has exhausted its uses.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule defines a promo code's discount behaviour and eligibility constraints.
type Rule struct {
	Code        string
	Type        pricing.DiscountType
	Value       decimal.Decimal
	MinSubtotal decimal.Decimal
	MaxDiscount decimal.Decimal
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
}

// Repository provides lookup and mutation of promo code rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// Validator resolves a promo code into a discount ready to attach to a
// checkout draft.
type Validator interface {
	Validate(ctx context.Context, code string) (*pricing.AppliedDiscount, error)
}

// RepoValidator implements Validator against a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for code, checks temporal validity and usage
// limits, and returns the discount to attach. No use is consumed here:
// attaching a code to a draft, re-applying it, or abandoning the draft must
// not burn the code. IncrementUses runs at order creation.
//
// An unmet MinSubtotal is deliberately not checked here: the pricing engine
// skips such a discount at computation time, so a draft may carry a discount
// that contributes zero until the cart grows.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*pricing.AppliedDiscount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}

	return &pricing.AppliedDiscount{
		Code:        rule.Code,
		Type:        rule.Type,
		Value:       rule.Value,
		MinSubtotal: rule.MinSubtotal,
		MaxDiscount: rule.MaxDiscount,
		Description: rule.Description,
	}, nil
}
