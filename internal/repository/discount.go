package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/discount"
	"github.com/threadline/checkout/internal/domain/pricing"
)

const (
	getDiscountByCodeSQL = `SELECT code, type, value, min_subtotal, max_discount, description,
		valid_from, valid_until, max_uses, uses
		FROM discounts WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementDiscountUsesSQL = `UPDATE discounts SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up an active promo code (case-insensitive).
// Returns discount.ErrInvalidCode when no matching active code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	rule, err := pgx.CollectExactlyOneRow(rows, scanDiscountRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given code.
func (r *DiscountRepository) IncrementUses(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementDiscountUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for promo code %q: %w", code, err)
	}
	return nil
}

func scanDiscountRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule        discount.Rule
		dtype       string
		value       decimal.Decimal
		minSubtotal decimal.Decimal
		maxDiscount decimal.Decimal
		validFrom   *time.Time
		validUntil  *time.Time
		maxUses     int32
		uses        int32
	)
	err := row.Scan(
		&rule.Code, &dtype, &value, &minSubtotal, &maxDiscount, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses,
	)
	rule.Type = pricing.DiscountType(dtype)
	rule.Value = value
	rule.MinSubtotal = minSubtotal
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
