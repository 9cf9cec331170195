package services

import (
	"context"
	"errors"
	"sync"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string { return e.msg }
func (e *stubRepoError) IsNotFound() bool { return e.notFound }
func (e *stubRepoError) IsConflict() bool { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func errRepoNotFound(msg string) error { return &stubRepoError{msg: msg, notFound: true} }

type stubOrderRepo struct {
	insertFn func(context.Context, domain.Order) error
	updateFn func(context.Context, domain.Order) error
	deleteFn func(context.Context, string) error
	findFn   func(context.Context, string) (domain.Order, error)
	listFn   func(context.Context, string, domain.Pagination) (domain.CursorPage[domain.Order], error)
}

var _ repositories.OrderRepository = (*stubOrderRepo)(nil)

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, pager)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubProductRepo struct {
	products map[string]domain.Product
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, errRepoNotFound("product " + productID)
	}
	return product, nil
}

func (s *stubProductRepo) Upsert(context.Context, domain.Product) error { return nil }

type stubUserRepo struct {
	users map[string]domain.User
}

func (s *stubUserRepo) FindByID(_ context.Context, userID string) (domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, errRepoNotFound("user " + userID)
	}
	return user, nil
}

func (s *stubUserRepo) Upsert(context.Context, domain.User) error { return nil }

type ledgerCall struct {
	op        string
	productID string
	quantity  int
}

type stubLedger struct {
	mu        sync.Mutex
	calls     []ledgerCall
	reserveFn func(context.Context, string, int) error
	releaseFn func(context.Context, string, int) error
	available map[string]int
}

var _ repositories.InventoryLedger = (*stubLedger)(nil)

func (s *stubLedger) TryReserve(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	s.calls = append(s.calls, ledgerCall{op: "reserve", productID: productID, quantity: quantity})
	s.mu.Unlock()
	if s.reserveFn != nil {
		return s.reserveFn(ctx, productID, quantity)
	}
	return nil
}

func (s *stubLedger) Release(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	s.calls = append(s.calls, ledgerCall{op: "release", productID: productID, quantity: quantity})
	s.mu.Unlock()
	if s.releaseFn != nil {
		return s.releaseFn(ctx, productID, quantity)
	}
	return nil
}

func (s *stubLedger) Available(_ context.Context, productID string) (int, error) {
	available, ok := s.available[productID]
	if !ok {
		return 0, repositories.StockNotFound("inventory.available", productID)
	}
	return available, nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []DomainEvent
	err    error
}

func (c *captureEvents) PublishEvent(_ context.Context, event DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Type)
	}
	return out
}

type stubUnitOfWork struct {
	runs  int
	runFn func(context.Context, func(context.Context) error) error
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.runs++
	if s.runFn != nil {
		return s.runFn(ctx, fn)
	}
	return fn(ctx)
}
