package services

import (
	"slices"

	domain "github.com/hanko-field/commerce/internal/domain"
)

// orderStateTransitions lists every allowed move. Delivered and Cancelled are terminal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped: {domain.OrderStatusDelivered},
}

// canTransition rejects same-state requests as well as moves missing from the table.
func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
