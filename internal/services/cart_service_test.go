package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
)

type stubCartRepo struct {
	insertFn     func(context.Context, domain.Cart) error
	updateFn     func(context.Context, domain.Cart) error
	deleteFn     func(context.Context, string) error
	findFn       func(context.Context, string) (domain.Cart, error)
	findByUserFn func(context.Context, string) (domain.Cart, error)
}

func (s *stubCartRepo) Insert(ctx context.Context, cart domain.Cart) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, cart)
	}
	return nil
}

func (s *stubCartRepo) Update(ctx context.Context, cart domain.Cart) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, cart)
	}
	return nil
}

func (s *stubCartRepo) Delete(ctx context.Context, cartID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cartID)
	}
	return nil
}

func (s *stubCartRepo) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	if s.findFn != nil {
		return s.findFn(ctx, cartID)
	}
	return domain.Cart{}, errRepoNotFound("cart " + cartID)
}

func (s *stubCartRepo) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	if s.findByUserFn != nil {
		return s.findByUserFn(ctx, userID)
	}
	return domain.Cart{}, errRepoNotFound("cart for " + userID)
}

func newTestCartService(t *testing.T, carts *stubCartRepo, unit *stubUnitOfWork) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Carts: carts,
		Products: &stubProductRepo{products: map[string]domain.Product{
			"prod-a": {ID: "prod-a", Price: 100},
			"prod-b": {ID: "prod-b", Price: 200},
		}},
		Users:       &stubUserRepo{users: map[string]domain.User{"user-1": {ID: "user-1"}}},
		UnitOfWork:  unit,
		Clock:       func() time.Time { return time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "0001" },
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc
}

func TestCartServiceCreatesCart(t *testing.T) {
	var inserted domain.Cart
	carts := &stubCartRepo{
		insertFn: func(_ context.Context, cart domain.Cart) error {
			inserted = cart
			return nil
		},
	}
	svc := newTestCartService(t, carts, &stubUnitOfWork{})

	result, err := svc.CreateOrUpdateCart(context.Background(), UpsertCartCommand{
		UserID: "user-1",
		Lines:  []LineItem{{ProductID: "prod-b", Quantity: 1}, {ProductID: "prod-a", Quantity: 0}},
	})
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	if result.Outcome != CartOutcomeCreated || result.Cart.ID != "cart_0001" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(inserted.Lines) != 1 || inserted.Lines[0].ProductID != "prod-b" {
		t.Fatalf("expected zero-quantity line pruned, got %+v", inserted.Lines)
	}
}

func TestCartServiceRetriesCreationRace(t *testing.T) {
	existing := domain.Cart{ID: "cart_existing", UserID: "user-1", Lines: []domain.CartLine{{ProductID: "prod-a", Quantity: 2}}}
	lookups := 0
	var updated domain.Cart
	carts := &stubCartRepo{
		findByUserFn: func(context.Context, string) (domain.Cart, error) {
			lookups++
			if lookups == 1 {
				return domain.Cart{}, errRepoNotFound("no cart yet")
			}
			return existing, nil
		},
		insertFn: func(context.Context, domain.Cart) error {
			return &stubRepoError{msg: "carts_user_id_key", conflict: true}
		},
		updateFn: func(_ context.Context, cart domain.Cart) error {
			updated = cart
			return nil
		},
	}
	unit := &stubUnitOfWork{}
	svc := newTestCartService(t, carts, unit)

	result, err := svc.CreateOrUpdateCart(context.Background(), UpsertCartCommand{
		UserID: "user-1",
		Lines:  []LineItem{{ProductID: "prod-a", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if unit.runs != 2 {
		t.Fatalf("expected the unit of work to run twice, got %d", unit.runs)
	}
	if result.Outcome != CartOutcomeUpdated || updated.Lines[0].Quantity != 3 {
		t.Fatalf("expected merge into the winning cart, got %+v", result)
	}
}

func TestCartServiceCreationRaceGivesUpAfterRetry(t *testing.T) {
	carts := &stubCartRepo{
		insertFn: func(context.Context, domain.Cart) error {
			return &stubRepoError{msg: "carts_user_id_key", conflict: true}
		},
	}
	svc := newTestCartService(t, carts, &stubUnitOfWork{})

	_, err := svc.CreateOrUpdateCart(context.Background(), UpsertCartCommand{
		UserID: "user-1",
		Lines:  []LineItem{{ProductID: "prod-a", Quantity: 1}},
	})
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity failure, got %v", err)
	}
}

func TestCartServiceUpdateQuantityLastDuplicateWins(t *testing.T) {
	var updated domain.Cart
	carts := &stubCartRepo{
		findFn: func(_ context.Context, id string) (domain.Cart, error) {
			return domain.Cart{ID: id, UserID: "user-1", Lines: []domain.CartLine{{ProductID: "prod-a", Quantity: 1}}}, nil
		},
		updateFn: func(_ context.Context, cart domain.Cart) error {
			updated = cart
			return nil
		},
	}
	svc := newTestCartService(t, carts, &stubUnitOfWork{})

	result, err := svc.UpdateCartItemQuantity(context.Background(), UpdateCartQuantityCommand{
		CartID: "cart_1",
		Lines: []LineItem{
			{ProductID: "prod-a", Quantity: 7},
			{ProductID: "prod-a", Quantity: 4},
			{ProductID: "prod-b", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if result.Outcome != CartOutcomeUpdated {
		t.Fatalf("expected updated outcome, got %s", result.Outcome)
	}
	if len(updated.Lines) != 2 || updated.Lines[0].Quantity != 4 || updated.Lines[1].ProductID != "prod-b" {
		t.Fatalf("unexpected lines %+v", updated.Lines)
	}

	_, err = svc.UpdateCartItemQuantity(context.Background(), UpdateCartQuantityCommand{
		CartID: "cart_1",
		Lines:  []LineItem{{ProductID: "prod-z", Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestCartServiceDeleteReportsAbsence(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepo{}, &stubUnitOfWork{})

	deleted, err := svc.DeleteCartByID(context.Background(), "cart_missing")
	if err != nil || deleted {
		t.Fatalf("expected false without error, got %v %v", deleted, err)
	}
	if _, err := svc.DeleteCartByID(context.Background(), " "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
