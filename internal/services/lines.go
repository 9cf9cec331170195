package services

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// maxLineQuantity bounds a single line so quantities fit the storage column and price totals
// stay far away from int64 overflow for realistic prices.
const maxLineQuantity = 1_000_000

type duplicatePolicy int

const (
	// sumDuplicates folds repeated products into one line by adding their quantities.
	sumDuplicates duplicatePolicy = iota
	// lastDuplicateWins keeps the final quantity supplied for a repeated product.
	lastDuplicateWins
)

var errNoLines = errors.New("at least one line is required")

// normalizeLineItems trims product ids, validates quantities and folds duplicates. The result
// is sorted by product id so ledger calls always lock products in the same order.
func normalizeLineItems(items []LineItem, policy duplicatePolicy, allowZero bool) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, errNoLines
	}

	index := make(map[string]int, len(items))
	result := make([]LineItem, 0, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("line %d: product id is required", i)
		}
		switch {
		case item.Quantity < 0:
			return nil, fmt.Errorf("line %d: quantity must not be negative", i)
		case item.Quantity == 0 && !allowZero:
			return nil, fmt.Errorf("line %d: quantity must be greater than zero", i)
		case item.Quantity > maxLineQuantity:
			return nil, fmt.Errorf("line %d: quantity must not exceed %d", i, maxLineQuantity)
		}

		pos, seen := index[productID]
		if !seen {
			index[productID] = len(result)
			result = append(result, LineItem{ProductID: productID, Quantity: item.Quantity})
			continue
		}
		if policy == lastDuplicateWins {
			result[pos].Quantity = item.Quantity
			continue
		}
		result[pos].Quantity += item.Quantity
		if result[pos].Quantity > maxLineQuantity {
			return nil, fmt.Errorf("product %s: combined quantity must not exceed %d", productID, maxLineQuantity)
		}
	}

	slices.SortFunc(result, func(a, b LineItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return result, nil
}

// mergeCartLines adds requested quantities onto the existing lines, appends new products and
// prunes lines that end at zero. Existing line order is preserved.
func mergeCartLines(existing []CartLine, requested []LineItem) ([]CartLine, error) {
	merged := slices.Clone(existing)
	for _, item := range requested {
		idx := slices.IndexFunc(merged, func(line CartLine) bool { return line.ProductID == item.ProductID })
		if idx < 0 {
			merged = append(merged, CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
			continue
		}
		merged[idx].Quantity += item.Quantity
		if merged[idx].Quantity > maxLineQuantity {
			return nil, fmt.Errorf("product %s: cart quantity must not exceed %d", item.ProductID, maxLineQuantity)
		}
	}
	return pruneCartLines(merged), nil
}

// overwriteCartLines replaces quantities of present products, appends absent ones and prunes zeros.
func overwriteCartLines(existing []CartLine, edits []LineItem) []CartLine {
	updated := slices.Clone(existing)
	for _, item := range edits {
		idx := slices.IndexFunc(updated, func(line CartLine) bool { return line.ProductID == item.ProductID })
		if idx < 0 {
			updated = append(updated, CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
			continue
		}
		updated[idx].Quantity = item.Quantity
	}
	return pruneCartLines(updated)
}

func pruneCartLines(lines []CartLine) []CartLine {
	return slices.DeleteFunc(lines, func(line CartLine) bool { return line.Quantity <= 0 })
}
