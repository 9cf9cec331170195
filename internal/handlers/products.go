package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

// ProductHandlers exposes stock levels and operator restocks.
type ProductHandlers struct {
	inventory services.InventoryService
}

// NewProductHandlers constructs product inventory handlers.
func NewProductHandlers(inventory services.InventoryService) *ProductHandlers {
	return &ProductHandlers{inventory: inventory}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}/stock", h.getStock)
	r.Post("/{productID}/restock", h.restock)
}

type stockPayload struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	CheckedAt string `json:"checkedAt"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *ProductHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	level, err := h.inventory.StockLevel(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStockPayload(level))
}

func (h *ProductHandlers) restock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req restockRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	level, err := h.inventory.Restock(ctx, services.RestockCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStockPayload(level))
}

func buildStockPayload(level services.StockLevel) stockPayload {
	return stockPayload{
		ProductID: level.ProductID,
		Available: level.Available,
		CheckedAt: formatTime(level.CheckedAt),
	}
}
