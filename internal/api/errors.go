package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/catalog"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/discount"
	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/payment"
	"github.com/threadline/checkout/internal/domain/pricing"
	"github.com/threadline/checkout/internal/domain/request"
)

// writeError converts a domain error into an HTTP response. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func writeError(c *gin.Context, err error) {
	var (
		illegal        *order.IllegalTransitionError
		illegalRequest *request.IllegalTransitionError
		stock          *order.InsufficientStockError
		notEligible    *request.NotEligibleError
		badRequest     *request.ValidationError
		badAddress     *address.ValidationError
	)

	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, request.ErrNotFound),
		errors.Is(err, checkout.ErrNoDraft),
		errors.Is(err, payment.ErrNoIntent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, checkout.ErrEmptySelection),
		errors.Is(err, checkout.ErrInvalidPricing),
		errors.Is(err, checkout.ErrAddressRequired),
		errors.Is(err, checkout.ErrPaymentMethodRequired),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, catalog.ErrNoPurchasableVariant),
		errors.Is(err, discount.ErrInvalidCode),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrUsageLimitReached),
		errors.Is(err, pricing.ErrMixedCurrency),
		errors.As(err, &badRequest),
		errors.As(err, &badAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, payment.ErrVerificationFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, payment.ErrTotalsMismatch),
		errors.Is(err, payment.ErrCODNotPayable),
		errors.Is(err, order.ErrGatewayPaymentRequired),
		errors.As(err, &illegal),
		errors.As(err, &illegalRequest),
		errors.As(err, &notEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.As(err, &stock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
