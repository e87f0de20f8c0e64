// Command seed-db loads the catalog, promo codes and the staff API key into
// PostgreSQL. It is idempotent: rerunning it upserts rather than duplicates.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/repository"
)

type productJSON struct {
	ID       string   `json:"id"`
	Handle   string   `json:"handle"`
	Title    string   `json:"title"`
	Options  []string `json:"options"`
	Variants []struct {
		ID                string            `json:"id"`
		Title             string            `json:"title"`
		SKU               string            `json:"sku"`
		Price             decimal.Decimal   `json:"price"`
		CompareAtPrice    *decimal.Decimal  `json:"compare_at_price"`
		OptionValues      map[string]string `json:"option_values"`
		TrackInventory    bool              `json:"track_inventory"`
		InventoryPolicy   string            `json:"inventory_policy"`
		QuantityAvailable int               `json:"quantity_available"`
	} `json:"variants"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		staffKey     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&staffKey, "staff-key", "", "staff API key to seed (or CHECKOUT_SEED_STAFF_KEY env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if staffKey == "" {
		staffKey = os.Getenv("CHECKOUT_SEED_STAFF_KEY")
	}
	if staffKey == "" {
		slog.Error("staff key is required: set --staff-key or CHECKOUT_SEED_STAFF_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, staffKey); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, staffKey string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedStaffKey(ctx, pool, staffKey); err != nil {
		return errors.Wrap(err, "seed staff key")
	}
	return nil
}

const (
	upsertProductSQL = `INSERT INTO products (id, handle, title) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle, title = EXCLUDED.title`

	upsertVariantSQL = `INSERT INTO variants
		(id, product_id, position, title, sku, price, compare_at_price, option_values,
		 track_inventory, inventory_policy, quantity_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			sku = EXCLUDED.sku,
			price = EXCLUDED.price,
			compare_at_price = EXCLUDED.compare_at_price,
			option_values = EXCLUDED.option_values,
			track_inventory = EXCLUDED.track_inventory,
			inventory_policy = EXCLUDED.inventory_policy,
			quantity_available = EXCLUDED.quantity_available`

	upsertDiscountSQL = `INSERT INTO discounts
		(code, type, value, min_subtotal, max_discount, description, max_uses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_subtotal = EXCLUDED.min_subtotal,
			max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description,
			max_uses = EXCLUDED.max_uses,
			active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, scopes = EXCLUDED.scopes`
)

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Handle, p.Title); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for i, v := range p.Variants {
			policy := v.InventoryPolicy
			if policy == "" {
				policy = "DENY"
			}
			if _, err := pool.Exec(ctx, upsertVariantSQL,
				v.ID, p.ID, i, v.Title, v.SKU, v.Price, v.CompareAtPrice,
				v.OptionValues, v.TrackInventory, policy, v.QuantityAvailable,
			); err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.ID)
			}
		}
		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("handle", p.Handle),
			slog.Int("variants", len(p.Variants)))
	}
	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding promo codes")

	type promo struct {
		code        string
		dtype       string
		value       decimal.Decimal
		minSubtotal decimal.Decimal
		maxDiscount decimal.Decimal
		description string
		maxUses     int
	}
	promos := []promo{
		{
			code:        "WELCOME200",
			dtype:       "flat",
			value:       decimal.NewFromInt(200),
			minSubtotal: decimal.NewFromInt(1500),
			description: "Flat 200 off on your first order above 1500",
		},
		{
			code:        "SAVE10",
			dtype:       "percentage",
			value:       decimal.NewFromInt(10),
			maxDiscount: decimal.NewFromInt(500),
			description: "10% off, up to 500",
		},
	}

	for _, p := range promos {
		if _, err := pool.Exec(ctx, upsertDiscountSQL,
			p.code, p.dtype, p.value, p.minSubtotal, p.maxDiscount, p.description, p.maxUses,
		); err != nil {
			return errors.Wrapf(err, "upsert promo %s", p.code)
		}
		slog.Info("upserted promo", slog.String("code", p.code), slog.String("description", p.description))
	}
	return nil
}

func seedStaffKey(ctx context.Context, pool *pgxpool.Pool, staffKey string) error {
	slog.Info("seeding staff API key")

	hash := sha256.Sum256([]byte(staffKey))
	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		"staff-default", hex.EncodeToString(hash[:]), "Default staff key", []string{"staff"},
	); err != nil {
		return errors.Wrap(err, "upsert staff key")
	}
	return nil
}
