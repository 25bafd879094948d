package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/urbanwoods/api/internal/platform/httpx"
	"github.com/urbanwoods/api/internal/platform/observability"
	"github.com/urbanwoods/api/internal/services"
)

const maxRequestBodyBytes = 1 << 20

// writeJSON renders a success payload with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.FromContext(ctx).Warn("response encode failed", zap.Error(err))
	}
}

// readJSONBody decodes the request body into dst, bounding its size. A false
// return means the error response has already been written.
func readJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds limit", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", fmt.Sprintf("could not parse request body: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

// writeServiceError folds service sentinel errors into the HTTP error
// envelope. Payment verification failures deliberately stay generic so the
// response never hints at which part of the signature check failed.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSignatureInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("payment_verification_failed", "payment verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidCarrier):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request cancelled", 499))
	default:
		observability.FromContext(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "something went wrong", http.StatusInternalServerError))
	}
}
