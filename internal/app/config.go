package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Gateway     GatewayConfig
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// GatewayConfig holds the payment gateway credentials.
type GatewayConfig struct {
	BaseURL string `usage:"Payment gateway base URL" flag:"gateway-base-url"`
	KeyID   string `usage:"Gateway key id, also handed to the client for the collection UI" flag:"gateway-key-id"`
	Secret  string `usage:"Gateway secret, used for order creation and signature verification" flag:"gateway-secret"`
}

// PricingConfig overrides the pricing constants. Zero values fall back to
// the production defaults.
type PricingConfig struct {
	FreeShippingThreshold float64 `default:"0" usage:"Subtotal at which shipping becomes free" flag:"free-shipping-threshold"`
	StandardShippingFee   float64 `default:"0" usage:"Flat shipping fee below the threshold" flag:"standard-shipping-fee"`
	CODSurcharge          float64 `default:"0" usage:"Cash-on-delivery surcharge" flag:"cod-surcharge"`
}

// RateLimitConfig controls the per-customer sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// pricingConfig merges the configured overrides onto the defaults.
func (c *Config) pricingConfig() pricing.Config {
	out := pricing.DefaultConfig()
	if c.Pricing.FreeShippingThreshold > 0 {
		out.FreeShippingThreshold = decimal.NewFromFloat(c.Pricing.FreeShippingThreshold)
	}
	if c.Pricing.StandardShippingFee > 0 {
		out.StandardShippingFee = decimal.NewFromFloat(c.Pricing.StandardShippingFee)
	}
	if c.Pricing.CODSurcharge > 0 {
		out.Surcharges[pricing.MethodCOD] = decimal.NewFromFloat(c.Pricing.CODSurcharge)
	}
	return out
}
