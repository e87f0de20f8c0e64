package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// Gateway is the outbound contract with the payment processor: create a
// processor-side order for an exact amount in minor units with a caller
// receipt token.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (gatewayOrderID string, err error)
}

// HTTPGateway talks to the processor's REST orders endpoint with basic-auth
// key credentials.
type HTTPGateway struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

// NewHTTPGateway creates an HTTPGateway for the given endpoint and key pair.
func NewHTTPGateway(baseURL, keyID, secret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayOrderReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type gatewayOrderResp struct {
	ID string `json:"id"`
}

// CreateOrder posts a new processor order and returns its id.
func (g *HTTPGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(gatewayOrderReq{Amount: amountMinor, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", errors.Wrap(err, "encode gateway order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call gateway")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Errorf("gateway order creation failed: status %d", resp.StatusCode)
	}

	var out gatewayOrderResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode gateway response")
	}
	if out.ID == "" {
		return "", errors.New("gateway returned empty order id")
	}
	return out.ID, nil
}
