package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

const maxBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads a bounded JSON body into dst, rejecting unknown fields. It writes the
// error response itself and reports whether the handler may continue.
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// writeServiceError maps service error kinds onto the HTTP error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request cancelled", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(notFoundCode(err), message, http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", message, http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", message, http.StatusConflict))
	case errors.Is(err, services.ErrInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state_transition", message, http.StatusConflict))
	case isUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "storage backend unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "request could not be completed", http.StatusInternalServerError))
	}
}

func notFoundCode(err error) string {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, services.ErrCartNotFound):
		return "cart_not_found"
	case errors.Is(err, services.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, services.ErrUserNotFound):
		return "user_not_found"
	default:
		return "not_found"
	}
}

func isUnavailable(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

type lineItemPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type linesRequest struct {
	Lines []lineItemPayload `json:"lines"`
}

func (r linesRequest) toLineItems() []services.LineItem {
	items := make([]services.LineItem, 0, len(r.Lines))
	for _, line := range r.Lines {
		items = append(items, services.LineItem{ProductID: strings.TrimSpace(line.ProductID), Quantity: line.Quantity})
	}
	return items
}
