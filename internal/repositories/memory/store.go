// Package memory implements the repository registry in process memory. A unit of work holds
// the store-wide write lock and journals undo steps so a failed unit leaves no trace.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	domain "github.com/hanko-field/commerce/internal/domain"
)

// Error categorises memory store failures for the service layer.
type Error struct {
	Op       string
	Message  string
	notFound bool
	conflict bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("memory %s: %s", e.Op, e.Message)
}

func (e *Error) IsNotFound() bool { return e != nil && e.notFound }
func (e *Error) IsConflict() bool { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return false }

func notFound(op, format string, args ...any) error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...), notFound: true}
}

func conflict(op, format string, args ...any) error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...), conflict: true}
}

// Store holds every aggregate behind one lock. Writers outside a unit of work take the lock
// per call; a unit of work holds it until commit or rollback.
type Store struct {
	mu sync.RWMutex

	products   map[string]domain.Product
	users      map[string]domain.User
	orders     map[string]domain.Order
	carts      map[string]domain.Cart
	cartOwners map[string]string
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		users:      make(map[string]domain.User),
		orders:     make(map[string]domain.Order),
		carts:      make(map[string]domain.Cart),
		cartOwners: make(map[string]string),
	}
}

type txKey struct{}

type tx struct {
	store  *Store
	active atomic.Bool
	undo   []func()
}

func (s *Store) txFrom(ctx context.Context) *tx {
	if ctx == nil {
		return nil
	}
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok || t == nil || t.store != s || !t.active.Load() {
		return nil
	}
	return t
}

// RunInTx executes fn while holding the write lock. Errors returned by fn, panics and context
// cancellation observed before commit replay the undo journal in reverse.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if fn == nil {
		return errors.New("memory: transaction function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s}
	t.active.Store(true)
	defer t.active.Store(false)

	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			t.rollback()
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// read runs fn under the read lock unless the caller already holds the write lock.
func (s *Store) read(ctx context.Context, fn func() error) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	if s.txFrom(ctx) != nil {
		return fn()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// write runs fn under the write lock, handing it a journal function when inside a unit of work.
func (s *Store) write(ctx context.Context, fn func(journal func(undo func())) error) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	if t := s.txFrom(ctx); t != nil {
		return fn(func(undo func()) { t.undo = append(t.undo, undo) })
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(func(func()) {})
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// restore returns an undo step that puts back the previous map entry, or removes the key when
// it did not exist before.
func restore[K comparable, V any](m map[K]V, key K) func() {
	prev, existed := m[key]
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}

func cloneOrder(order domain.Order) domain.Order {
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	if order.ShippingInfo != nil {
		info := *order.ShippingInfo
		order.ShippingInfo = &info
	}
	return order
}

func cloneCart(cart domain.Cart) domain.Cart {
	cart.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return cart
}
