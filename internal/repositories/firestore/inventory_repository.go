package firestore

import (
	"context"

	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

// inventoryLedger keeps stock on the product document. Reservations read the product inside
// the session transaction, so a concurrent writer aborts and replays the whole unit.
type inventoryLedger struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

var _ repositories.InventoryLedger = (*inventoryLedger)(nil)

func (l *inventoryLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.reserve"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}
	return l.adjust(ctx, op, productID, func(doc *productDocument) error {
		if doc.Inventory < quantity {
			return repositories.InsufficientStock(op, productID, quantity, doc.Inventory)
		}
		doc.Inventory -= quantity
		return nil
	})
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.release"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}
	return l.adjust(ctx, op, productID, func(doc *productDocument) error {
		doc.Inventory += quantity
		return nil
	})
}

func (l *inventoryLedger) Available(ctx context.Context, productID string) (int, error) {
	doc, found, err := l.products.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, repositories.StockNotFound("inventory.available", productID)
	}
	return doc.Inventory, nil
}

func (l *inventoryLedger) adjust(ctx context.Context, op, productID string, apply func(*productDocument) error) error {
	return l.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := l.products.Doc(ctx, productID)
		if err != nil {
			return err
		}
		doc, found, err := pfirestore.GetDoc[productDocument](ctx, ref)
		if err != nil {
			return err
		}
		if !found {
			return repositories.StockNotFound(op, productID)
		}
		if err := apply(&doc); err != nil {
			return err
		}
		pfirestore.SessionFrom(ctx).Set(ref, doc)
		return nil
	})
}
