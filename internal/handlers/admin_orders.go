package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/platform/httpx"
	"github.com/urbanwoods/api/internal/services"
)

// NotificationLister reads the persisted admin notification feed.
type NotificationLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Notification, error)
}

// AdminOrdersHandler serves the back-office order management endpoints.
type AdminOrdersHandler struct {
	orders        services.OrderService
	tracking      services.TrackingService
	sales         services.SalesService
	notifications NotificationLister
}

// NewAdminOrdersHandler constructs the admin orders handler.
func NewAdminOrdersHandler(orders services.OrderService, tracking services.TrackingService, sales services.SalesService, notifications NotificationLister) *AdminOrdersHandler {
	return &AdminOrdersHandler{orders: orders, tracking: tracking, sales: sales, notifications: notifications}
}

// ListAll handles GET /api/v1/orders/all: every order from both storage
// shapes, newest first.
func (h *AdminOrdersHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orders, err := h.orders.ListAllOrders(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"orders": toOrderViews(orders),
		"count":  len(orders),
	})
}

// Get handles GET /api/v1/orders/admin/order/{orderID}.
func (h *AdminOrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toOrderView(order))
}

// Delete handles DELETE /api/v1/orders/admin/order/{orderID}.
func (h *AdminOrdersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"deleted": true})
}

// UpdateStatus handles PUT /api/v1/orders/updateStatus/{orderID}.
func (h *AdminOrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Status string `json:"status"`
	}
	if !readJSONBody(w, r, &body) {
		return
	}

	order, err := h.tracking.UpdateStatus(ctx, chi.URLParam(r, "orderID"), body.Status)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toOrderView(order))
}

// UpdateTracking handles PUT /api/v1/orders/updateTracking/{orderID}.
func (h *AdminOrdersHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd services.UpdateTrackingCommand
	if !readJSONBody(w, r, &cmd) {
		return
	}
	cmd.OrderID = chi.URLParam(r, "orderID")

	order, err := h.tracking.UpdateTracking(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toOrderView(order))
}

// ManualOrder handles POST /api/v1/orders/admin/manual-order.
func (h *AdminOrdersHandler) ManualOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cmd services.ManualOrderCommand
	if !readJSONBody(w, r, &cmd) {
		return
	}

	order, err := h.orders.PlaceManualOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toOrderView(order))
}

// Notifications handles GET /api/v1/orders/admin/notifications with an
// optional limit query parameter.
func (h *AdminOrdersHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	notifications, err := h.notifications.ListRecent(ctx, limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"notifications": toNotificationViews(notifications),
		"count":         len(notifications),
	})
}

// TopSelling handles GET /api/v1/orders/dashboard/top-selling. The window is
// either a named range (daily/weekly/monthly/yearly), a year with optional
// month, or an explicit from/to pair in RFC 3339.
func (h *AdminOrdersHandler) TopSelling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := services.TopSellingQuery{Range: r.URL.Query().Get("range")}
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "year must be a positive integer", http.StatusBadRequest))
			return
		}
		query.Year = year
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "month must be between 1 and 12", http.StatusBadRequest))
			return
		}
		query.Month = month
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
			return
		}
		query.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be RFC 3339", http.StatusBadRequest))
			return
		}
		query.To = &to
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	rows, err := h.sales.TopSelling(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"products": toSalesRowViews(rows),
	})
}
