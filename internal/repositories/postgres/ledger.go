package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hanko-field/commerce/internal/platform/postgres"
	"github.com/hanko-field/commerce/internal/repositories"
)

type inventoryLedger struct{ uow *postgres.UnitOfWork }

var _ repositories.InventoryLedger = (*inventoryLedger)(nil)

// TryReserve decrements inventory with a single conditional update, which takes the row lock
// and re-checks availability atomically. A miss is diagnosed with a follow-up read.
func (l *inventoryLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.reserve"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}

	conn := l.uow.Conn(ctx)
	const reserve = `UPDATE products SET inventory = inventory - $2 WHERE id = $1 AND inventory >= $2`
	res, err := conn.ExecContext(ctx, reserve, productID, quantity)
	if err != nil {
		return postgres.WrapError(op, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return postgres.WrapError(op, err)
	} else if affected == 1 {
		return nil
	}

	available, err := l.available(ctx, op, productID)
	if err != nil {
		return err
	}
	return repositories.InsufficientStock(op, productID, quantity, available)
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	const op = "inventory.release"
	if quantity <= 0 {
		return repositories.InvalidQuantity(op, productID, quantity)
	}
	const release = `UPDATE products SET inventory = inventory + $2 WHERE id = $1`
	res, err := l.uow.Conn(ctx).ExecContext(ctx, release, productID, quantity)
	if err != nil {
		return postgres.WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return postgres.WrapError(op, err)
	}
	if affected == 0 {
		return repositories.StockNotFound(op, productID)
	}
	return nil
}

func (l *inventoryLedger) Available(ctx context.Context, productID string) (int, error) {
	return l.available(ctx, "inventory.available", productID)
}

func (l *inventoryLedger) available(ctx context.Context, op, productID string) (int, error) {
	var available int
	err := l.uow.Conn(ctx).QueryRowContext(ctx, `SELECT inventory FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repositories.StockNotFound(op, productID)
	}
	if err != nil {
		return 0, postgres.WrapError(op, err)
	}
	return available, nil
}
