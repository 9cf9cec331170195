package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	User               = domain.User
	Order              = domain.Order
	OrderLine          = domain.OrderLine
	OrderStatus        = domain.OrderStatus
	ShippingInfo       = domain.ShippingInfo
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	LineItem           = domain.LineItem
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService owns order placement, deletion, quantity edits and the status lifecycle. Every
// mutating call runs as one unit of work against the inventory ledger and the order store.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	DeleteOrderByID(ctx context.Context, orderID string) error
	GetOrderByID(ctx context.Context, orderID string) (Order, error)
	GetOrdersByUserID(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	UpdateOrderQuantity(ctx context.Context, cmd UpdateOrderQuantityCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
}

// CartService maintains the per-user cart, merging requested lines and deleting the cart once
// it no longer holds any line.
type CartService interface {
	CreateOrUpdateCart(ctx context.Context, cmd UpsertCartCommand) (CartResult, error)
	GetCartByUserID(ctx context.Context, userID string) (Cart, error)
	GetCartByID(ctx context.Context, cartID string) (Cart, error)
	UpdateCartItemQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (CartResult, error)
	DeleteCartByID(ctx context.Context, cartID string) (bool, error)
	ClearCart(ctx context.Context, userID string) (bool, error)
}

// InventoryService exposes stock levels and operator restocks.
type InventoryService interface {
	StockLevel(ctx context.Context, productID string) (StockLevel, error)
	Restock(ctx context.Context, cmd RestockCommand) (StockLevel, error)
}

// SystemService exposes operational metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Ready(ctx context.Context) (SystemHealthReport, bool, error)
}

// EventPublisher delivers domain events after their unit of work committed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event DomainEvent) error
}

// DomainEvent is the envelope published for order and cart changes.
type DomainEvent struct {
	Type        string
	AggregateID string
	UserID      string
	OccurredAt  time.Time
	Payload     map[string]any
}

// CreateOrderCommand places an order for the user.
type CreateOrderCommand struct {
	UserID string
	Lines  []LineItem
}

// UpdateOrderQuantityCommand overwrites quantities of existing lines and appends new products.
type UpdateOrderQuantityCommand struct {
	OrderID string
	Lines   []LineItem
}

// UpdateOrderStatusCommand moves an order through the status machine, optionally recording
// the shipping destination in the same write.
type UpdateOrderStatusCommand struct {
	OrderID      string
	Status       string
	ShippingInfo *ShippingInfo
}

// UpsertCartCommand creates the user's cart or merges lines into it.
type UpsertCartCommand struct {
	UserID string
	Lines  []LineItem
}

// UpdateCartQuantityCommand overwrites cart line quantities; zero removes a line.
type UpdateCartQuantityCommand struct {
	CartID string
	Lines  []LineItem
}

// CartOutcome tells callers what happened to the cart record.
type CartOutcome string

const (
	CartOutcomeCreated CartOutcome = "created"
	CartOutcomeUpdated CartOutcome = "updated"
	// CartOutcomeDeleted means the operation left the cart empty, so the record was removed
	// (or never created). Cart is the zero value in that case.
	CartOutcomeDeleted CartOutcome = "deleted"
)

// CartResult is returned by cart mutations.
type CartResult struct {
	Outcome CartOutcome
	Cart    Cart
}

// RestockCommand adds units to a product's inventory.
type RestockCommand struct {
	ProductID string
	Quantity  int
}

// StockLevel reports the available units of a product.
type StockLevel struct {
	ProductID string
	Available int
	CheckedAt time.Time
}
