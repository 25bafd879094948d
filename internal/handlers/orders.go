package handlers

import (
	"net/http"

	"github.com/urbanwoods/api/internal/platform/httpx"
	"github.com/urbanwoods/api/internal/services"
)

// OrdersHandler serves the storefront checkout endpoints.
type OrdersHandler struct {
	orders   services.OrderService
	payments services.PaymentService
}

// NewOrdersHandler constructs the storefront orders handler. A nil payment
// service leaves the gateway endpoints answering 503, for deployments that
// only take cash on delivery.
func NewOrdersHandler(orders services.OrderService, payments services.PaymentService) *OrdersHandler {
	return &OrdersHandler{orders: orders, payments: payments}
}

func (h *OrdersHandler) requirePayments(w http.ResponseWriter, r *http.Request) bool {
	if h.payments != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("payment_unavailable", "online payment is not configured", http.StatusServiceUnavailable))
	return false
}

// PlaceOrder handles POST /api/v1/orders/placeOrders for cash-on-delivery
// checkouts.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd services.PlaceOrderCommand
	if !readJSONBody(w, r, &cmd) {
		return
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toOrderView(order))
}

// CreateRazorpayOrder handles POST /api/v1/orders/create-razorpay-order.
func (h *OrdersHandler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requirePayments(w, r) {
		return
	}

	var cmd services.CreatePaymentIntentCommand
	if !readJSONBody(w, r, &cmd) {
		return
	}

	intent, err := h.payments.CreatePaymentIntent(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, intent)
}

// VerifyPayment handles POST /api/v1/orders/verify-payment: a valid gateway
// signature places the order with payment marked paid.
func (h *OrdersHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requirePayments(w, r) {
		return
	}

	var cmd services.VerifyPaymentCommand
	if !readJSONBody(w, r, &cmd) {
		return
	}

	order, err := h.payments.VerifyAndPlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toOrderView(order))
}
