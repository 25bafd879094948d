package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urbanwoods/api/internal/platform/config"
)

const (
	defaultBaseURL     = "https://api.razorpay.com"
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 1 << 20
)

// GatewayOrder is the payment-gateway-side order a client completes checkout
// against. Amount is in the gateway's smallest currency unit (paise for INR).
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// RazorpayClient creates gateway orders and verifies payment signatures.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// Option customises the RazorpayClient.
type Option func(*RazorpayClient)

// WithHTTPClient overrides the HTTP client used for gateway calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *RazorpayClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *RazorpayClient) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimSuffix(trimmed, "/")
		}
	}
}

// NewRazorpayClient constructs a gateway client from configuration.
func NewRazorpayClient(cfg config.RazorpayConfig, opts ...Option) (*RazorpayClient, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errors.New("payments: razorpay key id and secret are required")
	}
	client := &RazorpayClient{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder registers an order with the gateway so the client can open
// checkout. Amount is in whole rupees; the gateway wants paise.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountRupees int64, currency, receipt string) (GatewayOrder, error) {
	if amountRupees <= 0 {
		return GatewayOrder{}, errors.New("payments: amount must be positive")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "INR"
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   amountRupees * 100,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: call gateway: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayOrder{}, fmt.Errorf("payments: gateway returned status %d", resp.StatusCode)
	}

	var decoded createOrderResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: decode gateway response: %w", err)
	}
	if decoded.ID == "" {
		return GatewayOrder{}, errors.New("payments: gateway response missing order id")
	}
	return GatewayOrder{
		ID:       decoded.ID,
		Amount:   decoded.Amount,
		Currency: decoded.Currency,
		Receipt:  decoded.Receipt,
	}, nil
}

// VerifySignature checks the checkout callback signature: HMAC-SHA256 over
// "<gatewayOrderID>|<paymentID>" keyed with the API secret, hex encoded.
// Comparison is constant time.
func (c *RazorpayClient) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	paymentID = strings.TrimSpace(paymentID)
	signature = strings.TrimSpace(signature)
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
