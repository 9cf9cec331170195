package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventDeleted         = "order.deleted"
	orderEventStatusChanged   = "order.status.changed"
	orderEventQuantityUpdated = "order.quantity.updated"

	orderIDPrefix = "ord_"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Inventory   repositories.InventoryLedger
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// ReserveOnQuantityEdit makes UpdateOrderQuantity reserve or release the quantity delta
	// in the same unit of work. When false, edits leave the ledger untouched.
	ReserveOnQuantityEdit bool
}

type orderService struct {
	orders        repositories.OrderRepository
	products      repositories.ProductRepository
	users         repositories.UserRepository
	inventory     repositories.InventoryLedger
	unitOfWork    repositories.UnitOfWork
	clock         func() time.Time
	newID         func() string
	events        EventPublisher
	logger        func(context.Context, string, map[string]any)
	reserveOnEdit bool
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory ledger is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		users:      deps.Users,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:         idGen,
		events:        deps.Events,
		logger:        logger,
		reserveOnEdit: deps.ReserveOnQuantityEdit,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	lines, err := normalizeLineItems(cmd.Lines, sumDuplicates, false)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return Order{}, mapRepositoryError(err, ErrUserNotFound)
	}

	now := s.now()
	order := Order{
		ID:        s.nextOrderID(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		orderLines := make([]OrderLine, 0, len(lines))
		for _, line := range lines {
			if err := txCtx.Err(); err != nil {
				return err
			}
			product, err := s.products.FindByID(txCtx, line.ProductID)
			if err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
			if err := s.inventory.TryReserve(txCtx, line.ProductID, line.Quantity); err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
			orderLines = append(orderLines, OrderLine{
				ProductID:        line.ProductID,
				Quantity:         line.Quantity,
				UnitPrice:        product.Price,
				ReservedQuantity: line.Quantity,
			})
		}

		total, err := domain.OrderTotal(orderLines)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		order.Lines = orderLines
		order.TotalPrice = total

		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.create.failed", map[string]any{
			"userId": userID,
			"lines":  len(lines),
			"error":  err.Error(),
		})
		return Order{}, err
	}

	s.publishEvent(ctx, DomainEvent{
		Type:        orderEventCreated,
		AggregateID: order.ID,
		UserID:      order.UserID,
		OccurredAt:  now,
		Payload: map[string]any{
			"status":     string(order.Status),
			"totalPrice": order.TotalPrice,
			"lines":      len(order.Lines),
		},
	})
	return order, nil
}

func (s *orderService) DeleteOrderByID(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var deleted Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		// Read inside the unit so concurrent deletes cannot both release the same stock.
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}

		lines := slices.Clone(order.Lines)
		slices.SortFunc(lines, func(a, b OrderLine) int { return strings.Compare(a.ProductID, b.ProductID) })
		for _, line := range lines {
			if line.ReservedQuantity <= 0 {
				continue
			}
			if err := s.inventory.Release(txCtx, line.ProductID, line.ReservedQuantity); err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
		}

		if err := s.orders.Delete(txCtx, orderID); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, DomainEvent{
		Type:        orderEventDeleted,
		AggregateID: deleted.ID,
		UserID:      deleted.UserID,
		OccurredAt:  s.now(),
		Payload: map[string]any{
			"status": string(deleted.Status),
		},
	})
	return nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return order, nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if pager.PageSize < 0 {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: page size must not be negative", ErrOrderInvalidInput)
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrUserNotFound)
	}

	page, err := s.orders.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return page, nil
}

func (s *orderService) UpdateOrderQuantity(ctx context.Context, cmd UpdateOrderQuantityCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	edits, err := normalizeLineItems(cmd.Lines, lastDuplicateWins, false)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	var updated Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s; only pending orders can be edited", ErrOrderInvalidState, order.ID, order.Status)
		}

		for _, edit := range edits {
			idx := slices.IndexFunc(order.Lines, func(line OrderLine) bool { return line.ProductID == edit.ProductID })
			if idx >= 0 {
				line := &order.Lines[idx]
				if s.reserveOnEdit {
					if err := s.adjustReservation(txCtx, line, edit.Quantity); err != nil {
						return err
					}
				}
				line.Quantity = edit.Quantity
				continue
			}

			product, err := s.products.FindByID(txCtx, edit.ProductID)
			if err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
			line := OrderLine{
				ProductID: edit.ProductID,
				Quantity:  edit.Quantity,
				UnitPrice: product.Price,
			}
			if s.reserveOnEdit {
				if err := s.adjustReservation(txCtx, &line, edit.Quantity); err != nil {
					return err
				}
			}
			order.Lines = append(order.Lines, line)
		}

		order.UpdatedAt = s.now()
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, DomainEvent{
		Type:        orderEventQuantityUpdated,
		AggregateID: updated.ID,
		UserID:      updated.UserID,
		OccurredAt:  updated.UpdatedAt,
		Payload: map[string]any{
			"lines":    len(edits),
			"reserved": s.reserveOnEdit,
		},
	})
	return updated, nil
}

// adjustReservation moves the ledger by the difference between the target quantity and what
// the line already holds.
func (s *orderService) adjustReservation(ctx context.Context, line *OrderLine, target int) error {
	delta := target - line.ReservedQuantity
	switch {
	case delta > 0:
		if err := s.inventory.TryReserve(ctx, line.ProductID, delta); err != nil {
			return mapRepositoryError(err, ErrProductNotFound)
		}
	case delta < 0:
		if err := s.inventory.Release(ctx, line.ProductID, -delta); err != nil {
			return mapRepositoryError(err, ErrProductNotFound)
		}
	}
	line.ReservedQuantity = target
	return nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, ok := domain.ParseOrderStatus(cmd.Status)
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	var shipping *ShippingInfo
	if cmd.ShippingInfo != nil {
		sanitized, err := sanitizeShippingInfo(*cmd.ShippingInfo)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		shipping = &sanitized
	}

	var (
		updated  Order
		previous OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
		}

		previous = order.Status
		order.Status = target
		if shipping != nil {
			order.ShippingInfo = shipping
		}
		order.UpdatedAt = s.now()
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, DomainEvent{
		Type:        orderEventStatusChanged,
		AggregateID: updated.ID,
		UserID:      updated.UserID,
		OccurredAt:  updated.UpdatedAt,
		Payload: map[string]any{
			"previousStatus": string(previous),
			"currentStatus":  string(updated.Status),
			"shippingInfo":   shipping != nil,
		},
	})
	return updated, nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return runInUnit(ctx, s.unitOfWork, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event DomainEvent) {
	publish(ctx, s.events, s.logger, event)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// runInUnit runs fn in a unit of work and maps any error the backend raised while opening
// or committing it.
func runInUnit(ctx context.Context, unit repositories.UnitOfWork, fn func(context.Context) error) error {
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	if err := unit.RunInTx(ctx, fn); err != nil {
		return mapRepositoryError(err, nil)
	}
	return nil
}

func publish(ctx context.Context, events EventPublisher, logger func(context.Context, string, map[string]any), event DomainEvent) {
	if events == nil {
		return
	}
	if event.Payload != nil {
		event.Payload = maps.Clone(event.Payload)
	}
	if err := events.PublishEvent(ctx, event); err != nil {
		logger(ctx, "event.publish.failed", map[string]any{
			"type":      event.Type,
			"aggregate": event.AggregateID,
			"error":     err.Error(),
		})
	}
}
