package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, handle, title FROM products ORDER BY id`

	getProductByHandleSQL = `SELECT id, handle, title FROM products WHERE handle = $1`

	getProductsByIDsSQL = `SELECT id, handle, title FROM products WHERE id = ANY($1) ORDER BY id`

	getVariantsByProductsSQL = `SELECT id, product_id, title, sku, price, compare_at_price,
		option_values, track_inventory, inventory_policy, quantity_available
		FROM variants WHERE product_id = ANY($1) ORDER BY product_id, position`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// Variants are loaded alongside their products in catalog (position) order.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns all products with their variants.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByHandle returns a single product by its URL handle.
func (r *CatalogRepository) GetByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByHandleSQL, handle)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", handle, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", handle, err)
	}
	products := []catalog.Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *CatalogRepository) attachVariants(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, getVariantsByProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         catalog.Variant
			productID string
			price     decimal.Decimal
			compareAt *decimal.Decimal
			policy    string
		)
		err := rows.Scan(
			&v.ID, &productID, &v.Title, &v.SKU, &price, &compareAt,
			&v.OptionValues, &v.TrackInventory, &policy, &v.QuantityAvailable,
		)
		if err != nil {
			return fmt.Errorf("scanning variant: %w", err)
		}
		v.Price = price
		v.CompareAtPrice = compareAt
		v.InventoryPolicy = catalog.InventoryPolicy(policy)

		i, ok := index[productID]
		if !ok {
			continue
		}
		products[i].Variants = append(products[i].Variants, v)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range products {
		products[i].Options = optionNames(products[i].Variants)
	}
	return nil
}

// optionNames collects the distinct option names across variants, sorted for
// a stable API response.
func optionNames(variants []catalog.Variant) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, v := range variants {
		for name := range v.OptionValues {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Handle, &p.Title)
	return p, err
}
