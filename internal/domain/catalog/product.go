package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNoPurchasableVariant is returned when a product carries no variants
	// at all and therefore nothing can be added to a cart.
	ErrNoPurchasableVariant = errors.New("product has no purchasable variant")
)

// InventoryPolicy controls whether a tracked variant may oversell.
type InventoryPolicy string

const (
	// PolicyDeny blocks purchases beyond the available quantity.
	PolicyDeny InventoryPolicy = "DENY"
	// PolicyContinue allows purchases regardless of available quantity.
	PolicyContinue InventoryPolicy = "CONTINUE"
)

// Product represents a catalog item with its purchasable variants.
// Variant order is the catalog order and is significant: resolution falls
// back to the first variant.
type Product struct {
	ID       string    `json:"id"`
	Handle   string    `json:"handle"`
	Title    string    `json:"title"`
	Options  []string  `json:"options,omitempty"`
	Variants []Variant `json:"variants"`
}

// Variant is a concrete purchasable configuration of a product.
type Variant struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	SKU            string           `json:"sku"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	// OptionValues maps option name (e.g. "Size") to the chosen value ("M").
	OptionValues      map[string]string `json:"option_values,omitempty"`
	TrackInventory    bool              `json:"track_inventory"`
	InventoryPolicy   InventoryPolicy   `json:"inventory_policy"`
	QuantityAvailable int               `json:"quantity_available"`
}

// AvailableForSale reports whether qty units of this variant can be sold.
// Untracked variants and CONTINUE-policy variants are always available.
func (v Variant) AvailableForSale(qty int) bool {
	if !v.TrackInventory || v.InventoryPolicy == PolicyContinue {
		return true
	}
	return v.QuantityAvailable >= qty
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByHandle(ctx context.Context, handle string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
