package domain

import (
	"errors"
	"math"
)

// ErrAmountOverflow is returned when a monetary total does not fit in int64 minor units.
var ErrAmountOverflow = errors.New("pricing: amount overflow")

// LineTotal multiplies the unit price snapshot by the quantity.
func LineTotal(unitPrice int64, quantity int) (int64, error) {
	if unitPrice < 0 || quantity < 0 {
		return 0, errors.New("pricing: negative amount")
	}
	if quantity == 0 || unitPrice == 0 {
		return 0, nil
	}
	if unitPrice > math.MaxInt64/int64(quantity) {
		return 0, ErrAmountOverflow
	}
	return unitPrice * int64(quantity), nil
}

// OrderTotal sums quantity × unit price over every line.
func OrderTotal(lines []OrderLine) (int64, error) {
	var total int64
	for _, line := range lines {
		amount, err := LineTotal(line.UnitPrice, line.Quantity)
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-amount {
			return 0, ErrAmountOverflow
		}
		total += amount
	}
	return total, nil
}
