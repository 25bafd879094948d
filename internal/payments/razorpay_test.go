package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/urbanwoods/api/internal/platform/config"
)

func newTestClient(t *testing.T, baseURL string) *RazorpayClient {
	t.Helper()
	client, err := NewRazorpayClient(config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "super-secret",
	}, WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("NewRazorpayClient: %v", err)
	}
	return client
}

func TestCreateOrderConvertsRupeesToPaise(t *testing.T) {
	var received createOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "super-secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(createOrderResponse{
			ID:       "order_abc123",
			Amount:   received.Amount,
			Currency: received.Currency,
			Receipt:  received.Receipt,
			Status:   "created",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	order, err := client.CreateOrder(context.Background(), 2499, "", "ord_01")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if received.Amount != 249900 {
		t.Errorf("amount sent = %d, want 249900", received.Amount)
	}
	if received.Currency != "INR" {
		t.Errorf("currency sent = %q, want INR", received.Currency)
	}
	if order.ID != "order_abc123" {
		t.Errorf("order id = %q", order.ID)
	}
}

func TestCreateOrderRejectsGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.CreateOrder(context.Background(), 100, "INR", ""); err == nil {
		t.Fatal("expected error for gateway 400")
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")
	if _, err := client.CreateOrder(context.Background(), 0, "INR", ""); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestVerifySignature(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")

	sign := func(secret, payload string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		return hex.EncodeToString(mac.Sum(nil))
	}

	valid := sign("super-secret", "order_abc|pay_def")

	cases := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_abc", "pay_def", valid, true},
		{"valid uppercase hex", "order_abc", "pay_def", strings.ToUpper(valid), true},
		{"wrong secret", "order_abc", "pay_def", sign("other-secret", "order_abc|pay_def"), false},
		{"swapped ids", "pay_def", "order_abc", valid, false},
		{"empty signature", "order_abc", "pay_def", "", false},
		{"empty order id", "", "pay_def", valid, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := client.VerifySignature(tc.orderID, tc.paymentID, tc.signature); got != tc.want {
				t.Errorf("VerifySignature = %v, want %v", got, tc.want)
			}
		})
	}
}
