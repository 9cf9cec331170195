package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hanko-field/commerce/internal/repositories"
)

const eventInventoryRestocked = "inventory.restocked"

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory  repositories.InventoryLedger
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Events     EventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	ledger     repositories.InventoryLedger
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	events     EventPublisher
	logger     func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory ledger is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		ledger:     deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *inventoryService) StockLevel(ctx context.Context, productID string) (StockLevel, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return StockLevel{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	available, err := s.ledger.Available(ctx, productID)
	if err != nil {
		return StockLevel{}, mapRepositoryError(err, ErrProductNotFound)
	}
	return StockLevel{ProductID: productID, Available: available, CheckedAt: s.clock()}, nil
}

// Restock adds units through the ledger and reads the resulting level in the same unit.
func (s *inventoryService) Restock(ctx context.Context, cmd RestockCommand) (StockLevel, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return StockLevel{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxLineQuantity {
		return StockLevel{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrInventoryInvalidInput, maxLineQuantity)
	}

	var level StockLevel
	err := runInUnit(ctx, s.unitOfWork, func(txCtx context.Context) error {
		if err := s.ledger.Release(txCtx, productID, cmd.Quantity); err != nil {
			return mapRepositoryError(err, ErrProductNotFound)
		}
		available, err := s.ledger.Available(txCtx, productID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound)
		}
		level = StockLevel{ProductID: productID, Available: available, CheckedAt: s.clock()}
		return nil
	})
	if err != nil {
		s.logger(ctx, "inventory.restock.failed", map[string]any{
			"productId": productID,
			"quantity":  cmd.Quantity,
			"error":     err.Error(),
		})
		return StockLevel{}, err
	}

	publish(ctx, s.events, s.logger, DomainEvent{
		Type:        eventInventoryRestocked,
		AggregateID: productID,
		OccurredAt:  level.CheckedAt,
		Payload: map[string]any{
			"quantity":  cmd.Quantity,
			"available": level.Available,
		},
	})
	return level, nil
}
