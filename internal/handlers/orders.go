package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/services"
)

// OrderHandlers exposes order placement, listing, edits and status transitions.
type OrderHandlers struct {
	orders services.OrderService
	paging pagination.Options
}

// NewOrderHandlers constructs order handlers. paging bounds the page sizes accepted by the
// listing endpoint.
func NewOrderHandlers(orders services.OrderService, paging pagination.Options) *OrderHandlers {
	return &OrderHandlers{orders: orders, paging: paging}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}", h.getOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Patch("/{orderID}/lines", h.updateLines)
	r.Put("/{orderID}/status", h.updateStatus)
}

// UserRoutes registers the order endpoints nested under /users/{userID}.
func (h *OrderHandlers) UserRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
}

type orderLinePayload struct {
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
	UnitPrice        int64  `json:"unitPrice"`
	ReservedQuantity int    `json:"reservedQuantity"`
}

type shippingInfoPayload struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	PostCode    string `json:"postCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type orderPayload struct {
	ID           string               `json:"id"`
	UserID       string               `json:"userId"`
	Status       string               `json:"status"`
	Lines        []orderLinePayload   `json:"lines"`
	TotalPrice   int64                `json:"totalPrice"`
	ShippingInfo *shippingInfoPayload `json:"shippingInfo,omitempty"`
	CreatedAt    string               `json:"createdAt"`
	UpdatedAt    string               `json:"updatedAt"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type updateStatusRequest struct {
	Status       string               `json:"status"`
	ShippingInfo *shippingInfoPayload `json:"shippingInfo"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req linesRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID: strings.TrimSpace(chi.URLParam(r, "userID")),
		Lines:  req.toLineItems(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, h.paging)
	if err != nil {
		code := "invalid_page_size"
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			code = "invalid_page_token"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.GetOrdersByUserID(ctx, strings.TrimSpace(chi.URLParam(r, "userID")), services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Items:         make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrderByID(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.orders.DeleteOrderByID(ctx, strings.TrimSpace(chi.URLParam(r, "orderID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) updateLines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req linesRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.UpdateOrderQuantity(ctx, services.UpdateOrderQuantityCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Lines:   req.toLineItems(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateStatusRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpdateOrderStatusCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Status:  req.Status,
	}
	if info := req.ShippingInfo; info != nil {
		cmd.ShippingInfo = &services.ShippingInfo{
			Address:     info.Address,
			City:        info.City,
			Country:     info.Country,
			PostCode:    info.PostCode,
			PhoneNumber: info.PhoneNumber,
		}
	}

	order, err := h.orders.UpdateOrderStatus(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:         order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Lines:      make([]orderLinePayload, 0, len(order.Lines)),
		TotalPrice: order.TotalPrice,
		CreatedAt:  formatTime(order.CreatedAt),
		UpdatedAt:  formatTime(order.UpdatedAt),
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
			ProductID:        line.ProductID,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			ReservedQuantity: line.ReservedQuantity,
		})
	}
	if info := order.ShippingInfo; info != nil {
		payload.ShippingInfo = &shippingInfoPayload{
			Address:     info.Address,
			City:        info.City,
			Country:     info.Country,
			PostCode:    info.PostCode,
			PhoneNumber: info.PhoneNumber,
		}
	}
	return payload
}
