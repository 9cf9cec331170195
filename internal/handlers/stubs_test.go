package handlers

import (
	"context"
	"errors"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/services"
)

type stubOrderService struct {
	createFn       func(context.Context, services.CreateOrderCommand) (services.Order, error)
	deleteFn       func(context.Context, string) error
	getFn          func(context.Context, string) (services.Order, error)
	listFn         func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	updateQtyFn    func(context.Context, services.UpdateOrderQuantityCommand) (services.Order, error)
	updateStatusFn func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
}

var _ services.OrderService = (*stubOrderService)(nil)

var errStubNotConfigured = errors.New("stub not configured")

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errStubNotConfigured
}

func (s *stubOrderService) DeleteOrderByID(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return errStubNotConfigured
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errStubNotConfigured
}

func (s *stubOrderService) GetOrdersByUserID(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, pager)
	}
	return domain.CursorPage[services.Order]{}, errStubNotConfigured
}

func (s *stubOrderService) UpdateOrderQuantity(ctx context.Context, cmd services.UpdateOrderQuantityCommand) (services.Order, error) {
	if s.updateQtyFn != nil {
		return s.updateQtyFn(ctx, cmd)
	}
	return services.Order{}, errStubNotConfigured
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, cmd)
	}
	return services.Order{}, errStubNotConfigured
}

type stubCartService struct {
	upsertFn     func(context.Context, services.UpsertCartCommand) (services.CartResult, error)
	byUserFn     func(context.Context, string) (services.Cart, error)
	byIDFn       func(context.Context, string) (services.Cart, error)
	updateQtyFn  func(context.Context, services.UpdateCartQuantityCommand) (services.CartResult, error)
	deleteByIDFn func(context.Context, string) (bool, error)
	clearFn      func(context.Context, string) (bool, error)
}

var _ services.CartService = (*stubCartService)(nil)

func (s *stubCartService) CreateOrUpdateCart(ctx context.Context, cmd services.UpsertCartCommand) (services.CartResult, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.CartResult{}, errStubNotConfigured
}

func (s *stubCartService) GetCartByUserID(ctx context.Context, userID string) (services.Cart, error) {
	if s.byUserFn != nil {
		return s.byUserFn(ctx, userID)
	}
	return services.Cart{}, errStubNotConfigured
}

func (s *stubCartService) GetCartByID(ctx context.Context, cartID string) (services.Cart, error) {
	if s.byIDFn != nil {
		return s.byIDFn(ctx, cartID)
	}
	return services.Cart{}, errStubNotConfigured
}

func (s *stubCartService) UpdateCartItemQuantity(ctx context.Context, cmd services.UpdateCartQuantityCommand) (services.CartResult, error) {
	if s.updateQtyFn != nil {
		return s.updateQtyFn(ctx, cmd)
	}
	return services.CartResult{}, errStubNotConfigured
}

func (s *stubCartService) DeleteCartByID(ctx context.Context, cartID string) (bool, error) {
	if s.deleteByIDFn != nil {
		return s.deleteByIDFn(ctx, cartID)
	}
	return false, errStubNotConfigured
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) (bool, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return false, errStubNotConfigured
}

type stubInventoryService struct {
	stockFn   func(context.Context, string) (services.StockLevel, error)
	restockFn func(context.Context, services.RestockCommand) (services.StockLevel, error)
}

var _ services.InventoryService = (*stubInventoryService)(nil)

func (s *stubInventoryService) StockLevel(ctx context.Context, productID string) (services.StockLevel, error) {
	if s.stockFn != nil {
		return s.stockFn(ctx, productID)
	}
	return services.StockLevel{}, errStubNotConfigured
}

func (s *stubInventoryService) Restock(ctx context.Context, cmd services.RestockCommand) (services.StockLevel, error) {
	if s.restockFn != nil {
		return s.restockFn(ctx, cmd)
	}
	return services.StockLevel{}, errStubNotConfigured
}
