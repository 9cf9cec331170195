package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/repositories"
)

// Error kinds. Every error returned by the services matches exactly one of these with
// errors.Is, except context cancellation which is returned unchanged.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrIntegrity    = errors.New("integrity failure")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput error = &kindError{ErrValidation, "order: invalid input"}
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound error = &kindError{ErrNotFound, "order: not found"}
	// ErrOrderInvalidState indicates an invalid status transition or an edit on a non-pending order.
	ErrOrderInvalidState error = &kindError{ErrInvalidState, "order: invalid status transition"}

	ErrCartInvalidInput error = &kindError{ErrValidation, "cart: invalid input"}
	ErrCartNotFound     error = &kindError{ErrNotFound, "cart: not found"}

	ErrInventoryInvalidInput error = &kindError{ErrValidation, "inventory: invalid input"}
	// ErrInsufficientStock is returned when a reservation exceeds the available units.
	ErrInsufficientStock error = &kindError{ErrConflict, "inventory: insufficient stock"}

	ErrProductNotFound error = &kindError{ErrNotFound, "product: not found"}
	ErrUserNotFound    error = &kindError{ErrNotFound, "user: not found"}
)

// mapRepositoryError converts persistence failures into service error kinds. notFound is the
// entity-specific sentinel used when the repository reports a missing record.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isKinded(err) {
		return err
	}

	if invErr, ok := repositories.AsInventoryError(err); ok {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInsufficientStock, invErr.Message)
		case repositories.InventoryErrorStockNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidInput, invErr.Message)
		}
	}

	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() && notFound != nil {
		return fmt.Errorf("%w: %v", notFound, err)
	}

	// Conflicts, outages and anything unclassified abort the unit of work as integrity failures.
	return fmt.Errorf("%w: %w", ErrIntegrity, err)
}

func isKinded(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrInvalidState, ErrIntegrity} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func isRepositoryConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
