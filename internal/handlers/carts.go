package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

// CartHandlers exposes the per-user cart.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers the /carts endpoints addressed by cart id.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{cartID}", h.getCartByID)
	r.Patch("/{cartID}/lines", h.updateLines)
	r.Delete("/{cartID}", h.deleteCart)
}

// UserRoutes registers the cart endpoints nested under /users/{userID}.
func (h *CartHandlers) UserRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/cart", h.upsertCart)
	r.Get("/cart", h.getUserCart)
	r.Delete("/cart", h.clearCart)
}

type cartLinePayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartPayload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Lines     []cartLinePayload `json:"lines"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

type cartResultResponse struct {
	Outcome string       `json:"outcome"`
	Cart    *cartPayload `json:"cart"`
}

type cartDeleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (h *CartHandlers) upsertCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req linesRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	result, err := h.carts.CreateOrUpdateCart(ctx, services.UpsertCartCommand{
		UserID: strings.TrimSpace(chi.URLParam(r, "userID")),
		Lines:  req.toLineItems(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCartResult(w, result)
}

func (h *CartHandlers) getUserCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.GetCartByUserID(ctx, strings.TrimSpace(chi.URLParam(r, "userID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) getCartByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.GetCartByID(ctx, strings.TrimSpace(chi.URLParam(r, "cartID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStore(w)
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) updateLines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req linesRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	result, err := h.carts.UpdateCartItemQuantity(ctx, services.UpdateCartQuantityCommand{
		CartID: strings.TrimSpace(chi.URLParam(r, "cartID")),
		Lines:  req.toLineItems(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCartResult(w, result)
}

func (h *CartHandlers) deleteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	deleted, err := h.carts.DeleteCartByID(ctx, strings.TrimSpace(chi.URLParam(r, "cartID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartDeleteResponse{Deleted: deleted})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	deleted, err := h.carts.ClearCart(ctx, strings.TrimSpace(chi.URLParam(r, "userID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartDeleteResponse{Deleted: deleted})
}

func writeCartResult(w http.ResponseWriter, result services.CartResult) {
	resp := cartResultResponse{Outcome: string(result.Outcome)}
	if result.Outcome != services.CartOutcomeDeleted {
		payload := buildCartPayload(result.Cart)
		resp.Cart = &payload
	}
	status := http.StatusOK
	if result.Outcome == services.CartOutcomeCreated {
		status = http.StatusCreated
	}
	setNoStore(w)
	writeJSONResponse(w, status, resp)
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Lines:     make([]cartLinePayload, 0, len(cart.Lines)),
		CreatedAt: formatTime(cart.CreatedAt),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, line := range cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return payload
}
