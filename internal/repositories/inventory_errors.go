package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode enumerates repository error causes for inventory operations.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates requested quantity exceeds availability.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorStockNotFound indicates the product does not have a stock record.
	InventoryErrorStockNotFound InventoryErrorCode = "inventory_stock_not_found"
	// InventoryErrorInvalidQuantity indicates a non-positive reserve or release quantity.
	InventoryErrorInvalidQuantity InventoryErrorCode = "inventory_invalid_quantity"
)

// InventoryError wraps inventory-specific failures with machine readable codes.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InsufficientStock builds the error returned when a reservation exceeds availability.
func InsufficientStock(op, productID string, requested, available int) *InventoryError {
	err := NewInventoryError(InventoryErrorInsufficientStock,
		fmt.Sprintf("product %s: requested %d, available %d", productID, requested, available), nil)
	err.Op = op
	err.ProductID = productID
	return err
}

// StockNotFound builds the error returned when the product has no stock record.
func StockNotFound(op, productID string) *InventoryError {
	err := NewInventoryError(InventoryErrorStockNotFound, fmt.Sprintf("product %s not found", productID), nil)
	err.Op = op
	err.ProductID = productID
	return err
}

// InvalidQuantity builds the error returned for non-positive ledger quantities.
func InvalidQuantity(op, productID string, quantity int) *InventoryError {
	err := NewInventoryError(InventoryErrorInvalidQuantity,
		fmt.Sprintf("product %s: quantity %d must be positive", productID, quantity), nil)
	err.Op = op
	err.ProductID = productID
	return err
}

// AsInventoryError extracts a typed inventory error from the chain.
func AsInventoryError(err error) (*InventoryError, bool) {
	var invErr *InventoryError
	if errors.As(err, &invErr) && invErr != nil {
		return invErr, true
	}
	return nil, false
}
