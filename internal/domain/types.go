package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped marks an order handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus maps user input onto the closed status set. The boolean reports whether
// the value named a known status.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "canceled" {
		normalized = string(OrderStatusCancelled)
	}
	for _, status := range orderStatuses {
		if string(status) == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Product is a sellable catalog entry. Inventory is only mutated through the inventory ledger.
type Product struct {
	ID        string
	Title     string
	Price     int64
	Inventory int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is the minimal account projection the order and cart flows depend on.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Order aggregates purchased lines with the price snapshot captured at creation.
type Order struct {
	ID           string
	UserID       string
	Status       OrderStatus
	Lines        []OrderLine
	TotalPrice   int64
	ShippingInfo *ShippingInfo
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderLine stores the quantity ordered for a product. ReservedQuantity records the units
// taken from the inventory ledger for this line and is what gets released on deletion.
type OrderLine struct {
	ProductID        string
	Quantity         int
	UnitPrice        int64
	ReservedQuantity int
}

// Line returns the order line for the product, if present.
func (o Order) Line(productID string) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return OrderLine{}, false
}

// ShippingInfo is the delivery destination recorded when an order progresses.
type ShippingInfo struct {
	Address     string
	City        string
	Country     string
	PostCode    string
	PhoneNumber string
}

// Cart is the per-user basket. A persisted cart always holds at least one line.
type Cart struct {
	ID        string
	UserID    string
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine stores the requested quantity of a product in a cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// LineItem is a product/quantity pair supplied by callers when placing or editing orders and carts.
type LineItem struct {
	ProductID string
	Quantity  int
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
