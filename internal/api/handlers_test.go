package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/payment"
	"github.com/threadline/checkout/internal/domain/pricing"
	"github.com/threadline/checkout/internal/domain/request"
	"github.com/threadline/checkout/internal/repository"
)

const (
	testCustomer      = "cust-1"
	testGatewaySecret = "gw-secret"
	testStaffKey      = "staff-key-1"
)

type testEnv struct {
	server    *Server
	drafts    *memDrafts
	orders    *memOrders
	intents   *memIntents
	addresses *memAddresses
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cat := &memCatalog{products: testProducts()}
	draftRepo := newMemDrafts()
	cfg := pricing.DefaultConfig()

	store := checkout.NewStore(draftRepo, cat, &stubDiscounts{
		codes: map[string]pricing.AppliedDiscount{
			"SAVE10": {Code: "SAVE10", Type: pricing.DiscountPercentage, Value: dec(10), MaxDiscount: dec(500)},
		},
	}, cfg)

	orderRepo := newMemOrders()
	orderSvc := order.NewService(orderRepo, memCarts{}, store, cat, &memCodeUses{})

	intents := newMemIntents()
	paySvc := payment.NewService(&stubGateway{}, payment.NewVerifier(testGatewaySecret),
		intents, store, orderSvc, cfg, "key_test")

	reqSvc := request.NewService(newMemRequests(), orderSvc)
	addrRepo := newMemAddresses()
	addrStore := address.NewStore(addrRepo)

	staffHash := sha256.Sum256([]byte(testStaffKey))
	keys := &stubKeys{byHash: map[string]*repository.APIKeyRecord{
		hex.EncodeToString(staffHash[:]): {
			ID:      "key-1",
			KeyHash: hex.EncodeToString(staffHash[:]),
			Name:    "ops",
			Scopes:  []string{"staff"},
		},
	}}

	return &testEnv{
		server:    NewServer(cat, store, orderSvc, paySvc, reqSvc, addrStore, keys),
		drafts:    draftRepo,
		orders:    orderRepo,
		intents:   intents,
		addresses: addrRepo,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(w, req)
	return w
}

func (e *testEnv) asCustomer(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, map[string]string{"X-Customer-ID": testCustomer})
}

func (e *testEnv) asStaff(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, map[string]string{"X-API-Key": testStaffKey})
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func testAddressBody() map[string]any {
	return map[string]any{
		"name":        "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
		"line1":       "14 MG Road",
		"city":        "Bengaluru",
		"state":       "KA",
		"postal_code": "560001",
	}
}

// runs the draft through items, address and payment method selection.
func (e *testEnv) preparedDraft(t *testing.T, method string) {
	t.Helper()
	w := e.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{
		"items": []map[string]any{{"product_id": "p1", "size": "30", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.asCustomer(t, http.MethodPut, "/api/checkout/draft/address", testAddressBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.asCustomer(t, http.MethodPut, "/api/checkout/draft/payment-method", map[string]any{"method": method})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	products := decodeJSON[[]map[string]any](t, w)
	assert.Len(t, products, 2)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/products/slim-fit-jeans", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/products/no-such-handle", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerIdentityRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutFlowCOD(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	o := decodeJSON[order.Order](t, w)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "TL-0001", o.Number)
	// 2 × 1700 subtotal, 100 shipping below the free threshold, COD surcharge 50.
	assert.Equal(t, "3550", o.Totals.Total.String())

	// The draft is consumed by order placement.
	w = env.asCustomer(t, http.MethodGet, "/api/checkout/draft", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceOrderRejectsOutOfStock(t *testing.T) {
	env := newTestEnv(t)

	w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{
		"items": []map[string]any{{"product_id": "p1", "size": "32", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.asCustomer(t, http.MethodPut, "/api/checkout/draft/address", testAddressBody())
	require.Equal(t, http.StatusOK, w.Code)
	w = env.asCustomer(t, http.MethodPut, "/api/checkout/draft/payment-method", map[string]any{"method": "COD"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestDraftValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("empty selection", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{"items": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad postal code", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{
			"items": []map[string]any{{"product_id": "p2", "size": "M", "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		body := testAddressBody()
		body["postal_code"] = "56"
		w = env.asCustomer(t, http.MethodPut, "/api/checkout/draft/address", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("payment method before address", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodDelete, "/api/checkout/draft", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		w = env.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{
			"items": []map[string]any{{"product_id": "p2", "size": "M", "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.asCustomer(t, http.MethodPut, "/api/checkout/draft/payment-method", map[string]any{"method": "COD"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown promo code", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft/discount", map[string]any{"code": "NOPE"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestApplyDiscount(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft/discount", map[string]any{"code": "SAVE10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d := decodeJSON[checkout.Draft](t, w)
	// 10% of 3400 = 340.
	assert.Equal(t, "340", d.Totals.DiscountAmount.String())
}

func gatewaySignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGatewayPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "UPI")

	w := env.asCustomer(t, http.MethodPost, "/api/orders/gateway/intent", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	payload := decodeJSON[payment.CheckoutPayload](t, w)
	assert.Equal(t, "key_test", payload.KeyID)
	// 2 × 1700 plus 100 shipping, no surcharge → 3500.00 in minor units.
	assert.Equal(t, int64(350000), payload.AmountMinor)

	w = env.asCustomer(t, http.MethodPost, "/api/orders/gateway/confirm", map[string]any{
		"gateway_order_id":   payload.GatewayOrderID,
		"gateway_payment_id": "pay_1",
		"signature":          gatewaySignature(payload.GatewayOrderID, "pay_1"),
		"total":              "3500",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	o := decodeJSON[order.Order](t, w)
	assert.Equal(t, payload.GatewayOrderID, o.Payment.GatewayOrderID)
	assert.Equal(t, "pay_1", o.Payment.GatewayPaymentID)

	// The client resends the identical confirmation after a lost response:
	// same order back, no duplicate created.
	w = env.asCustomer(t, http.MethodPost, "/api/orders/gateway/confirm", map[string]any{
		"gateway_order_id":   payload.GatewayOrderID,
		"gateway_payment_id": "pay_1",
		"signature":          gatewaySignature(payload.GatewayOrderID, "pay_1"),
		"total":              "3500",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	retried := decodeJSON[order.Order](t, w)
	assert.Equal(t, o.ID, retried.ID)
	assert.Len(t, env.orders.byID, 1)
}

func TestGatewayConfirmTamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "UPI")

	w := env.asCustomer(t, http.MethodPost, "/api/orders/gateway/intent", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	payload := decodeJSON[payment.CheckoutPayload](t, w)

	w = env.asCustomer(t, http.MethodPost, "/api/orders/gateway/confirm", map[string]any{
		"gateway_order_id":   payload.GatewayOrderID,
		"gateway_payment_id": "pay_1",
		"signature":          "forged",
		"total":              "3400",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// No order was created and the draft survives for a retry.
	w = env.asCustomer(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	w = env.asCustomer(t, http.MethodGet, "/api/checkout/draft", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayIntentRejectsCOD(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders/gateway/intent", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAbandonGatewayIntent(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "CARD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders/gateway/intent", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.asCustomer(t, http.MethodDelete, "/api/orders/gateway/intent", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Draft remains usable after the collection UI was dismissed.
	w = env.asCustomer(t, http.MethodGet, "/api/checkout/draft", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeJSON[order.Order](t, w)

	w = env.asCustomer(t, http.MethodGet, "/api/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/orders/"+o.ID, nil, map[string]string{"X-Customer-ID": "someone-else"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostPurchaseRequests(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeJSON[order.Order](t, w)

	t.Run("return on pending order rejected", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodPost, "/api/orders/"+o.ID+"/return", map[string]any{
			"item_ids": []string{"v1"},
			"reason":   "WRONG_SIZE",
			"bank_details": map[string]any{
				"account_holder": "Asha Rao",
				"account_number": "1234567890",
				"ifsc":           "HDFC0000123",
				"bank_name":      "HDFC",
			},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("cancel on pending order accepted", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", map[string]any{
			"item_ids": []string{"v1"},
			"reason":   "CHANGED_MIND",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		r := decodeJSON[request.Request](t, w)
		assert.Equal(t, request.StatusSubmitted, r.Status)
	})

	t.Run("listed under the order", func(t *testing.T) {
		w := env.asCustomer(t, http.MethodGet, "/api/orders/"+o.ID+"/requests", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decodeJSON[[]request.Request](t, w)
		assert.Len(t, list, 1)
	})
}

func TestStaffAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPatch, "/api/staff/orders/x", map[string]any{"status": "PAID"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPatch, "/api/staff/orders/x", map[string]any{"status": "PAID"},
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaffOrderTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeJSON[order.Order](t, w)

	t.Run("pending to fulfilled rejected", func(t *testing.T) {
		w := env.asStaff(t, http.MethodPatch, "/api/staff/orders/"+o.ID, map[string]any{"status": "FULFILLED"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("pending to paid", func(t *testing.T) {
		w := env.asStaff(t, http.MethodPatch, "/api/staff/orders/"+o.ID, map[string]any{"status": "PAID"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decodeJSON[order.Order](t, w)
		assert.Equal(t, order.StatusPaid, updated.Status)
	})

	t.Run("shipment and fulfil together", func(t *testing.T) {
		w := env.asStaff(t, http.MethodPatch, "/api/staff/orders/"+o.ID, map[string]any{
			"status": "FULFILLED",
			"shipment": map[string]any{
				"tracking_number": "AWB123",
				"courier_name":    "BlueDart",
			},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decodeJSON[order.Order](t, w)
		assert.Equal(t, order.StatusFulfilled, updated.Status)
		assert.Equal(t, "AWB123", updated.Shipment.TrackingNumber)
	})

	t.Run("terminal state sealed", func(t *testing.T) {
		w := env.asStaff(t, http.MethodPatch, "/api/staff/orders/"+o.ID, map[string]any{"status": "CANCELLED"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestStaffRequestProgression(t *testing.T) {
	env := newTestEnv(t)
	env.preparedDraft(t, "COD")

	w := env.asCustomer(t, http.MethodPost, "/api/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeJSON[order.Order](t, w)

	w = env.asCustomer(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", map[string]any{
		"item_ids": []string{"v1"},
		"reason":   "CHANGED_MIND",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	r := decodeJSON[request.Request](t, w)

	w = env.asStaff(t, http.MethodPatch, "/api/staff/requests/"+r.ID, map[string]any{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Moving an approved request back to SUBMITTED is not a legal edge.
	w = env.asStaff(t, http.MethodPatch, "/api/staff/requests/"+r.ID, map[string]any{"status": "SUBMITTED"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetDraftAddressSurvivesAddressBookFailure(t *testing.T) {
	env := newTestEnv(t)

	w := env.asCustomer(t, http.MethodPost, "/api/checkout/draft", map[string]any{
		"items": []map[string]any{{"product_id": "p1", "size": "30", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The address-book write is best-effort: its failure must not block
	// checkout progression.
	env.addresses.upsertErr = errors.New("address store down")
	w = env.asCustomer(t, http.MethodPut, "/api/checkout/draft/address", testAddressBody())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAddressBook(t *testing.T) {
	env := newTestEnv(t)

	body := testAddressBody()
	body["make_default"] = true
	w := env.asCustomer(t, http.MethodPost, "/api/addresses", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.asCustomer(t, http.MethodGet, "/api/addresses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeJSON[[]address.Address](t, w)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsDefault)
}
