package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/commerce/internal/repositories"
)

const (
	cartEventUpdated = "cart.updated"
	cartEventDeleted = "cart.deleted"

	cartIDPrefix = "cart_"

	// cartCreateAttempts covers the first-create race: the loser of a concurrent insert on the
	// per-user uniqueness constraint retries once and takes the merge path.
	cartCreateAttempts = 2
)

var errCartOwnerRace = errors.New("cart: concurrent cart creation")

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	users      repositories.UserRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     EventPublisher
	logger     func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService backed by the provided repositories.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("cart service: user repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:      deps.Carts,
		products:   deps.Products,
		users:      deps.Users,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *cartService) CreateOrUpdateCart(ctx context.Context, cmd UpsertCartCommand) (CartResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CartResult{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	lines, err := normalizeLineItems(cmd.Lines, sumDuplicates, true)
	if err != nil {
		return CartResult{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return CartResult{}, mapRepositoryError(err, ErrUserNotFound)
	}

	var result CartResult
	for attempt := 1; ; attempt++ {
		result, err = s.upsertCart(ctx, userID, lines)
		if err == nil {
			break
		}
		if attempt < cartCreateAttempts && (errors.Is(err, errCartOwnerRace) || isRepositoryConflict(err)) {
			s.logger(ctx, "cart.create.retry", map[string]any{
				"userId":  userID,
				"attempt": attempt,
			})
			continue
		}
		if errors.Is(err, errCartOwnerRace) {
			return CartResult{}, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		return CartResult{}, mapRepositoryError(err, ErrCartNotFound)
	}

	s.publishResult(ctx, userID, result)
	if result.Outcome == CartOutcomeDeleted {
		result.Cart = Cart{}
	}
	return result, nil
}

// upsertCart performs one attempt of the create-or-merge unit. Insert conflicts are returned
// unmapped so the caller can tell the creation race apart from other failures.
func (s *cartService) upsertCart(ctx context.Context, userID string, lines []LineItem) (CartResult, error) {
	var result CartResult
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		for _, line := range lines {
			if _, err := s.products.FindByID(txCtx, line.ProductID); err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
		}

		now := s.now()
		cart, err := s.carts.FindByUser(txCtx, userID)
		switch {
		case err == nil:
		case isRepositoryNotFound(err):
			initial, mergeErr := mergeCartLines(nil, lines)
			if mergeErr != nil {
				return fmt.Errorf("%w: %v", ErrCartInvalidInput, mergeErr)
			}
			if len(initial) == 0 {
				result = CartResult{Outcome: CartOutcomeDeleted}
				return nil
			}
			created := Cart{
				ID:        s.nextCartID(),
				UserID:    userID,
				Lines:     initial,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.carts.Insert(txCtx, created); err != nil {
				if isRepositoryConflict(err) {
					return fmt.Errorf("%w: %w", errCartOwnerRace, err)
				}
				return mapRepositoryError(err, ErrCartNotFound)
			}
			result = CartResult{Outcome: CartOutcomeCreated, Cart: created}
			return nil
		default:
			return mapRepositoryError(err, ErrCartNotFound)
		}

		merged, err := mergeCartLines(cart.Lines, lines)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
		}
		if len(merged) == 0 {
			if err := s.carts.Delete(txCtx, cart.ID); err != nil {
				return mapRepositoryError(err, ErrCartNotFound)
			}
			result = CartResult{Outcome: CartOutcomeDeleted, Cart: Cart{ID: cart.ID, UserID: cart.UserID}}
			return nil
		}
		cart.Lines = merged
		cart.UpdatedAt = now
		if err := s.carts.Update(txCtx, cart); err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		result = CartResult{Outcome: CartOutcomeUpdated, Cart: cart}
		return nil
	})
	return result, err
}

func (s *cartService) GetCartByUserID(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return Cart{}, mapRepositoryError(err, ErrCartNotFound)
	}
	return cart, nil
}

func (s *cartService) GetCartByID(ctx context.Context, cartID string) (Cart, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return Cart{}, mapRepositoryError(err, ErrCartNotFound)
	}
	return cart, nil
}

func (s *cartService) UpdateCartItemQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (CartResult, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return CartResult{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	edits, err := normalizeLineItems(cmd.Lines, lastDuplicateWins, true)
	if err != nil {
		return CartResult{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
	}

	var result CartResult
	err = runInUnit(ctx, s.unitOfWork, func(txCtx context.Context) error {
		cart, err := s.carts.FindByID(txCtx, cartID)
		if err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		for _, edit := range edits {
			if cartHasProduct(cart, edit.ProductID) {
				continue
			}
			if _, err := s.products.FindByID(txCtx, edit.ProductID); err != nil {
				return mapRepositoryError(err, ErrProductNotFound)
			}
		}

		cart.Lines = overwriteCartLines(cart.Lines, edits)
		if len(cart.Lines) == 0 {
			if err := s.carts.Delete(txCtx, cart.ID); err != nil {
				return mapRepositoryError(err, ErrCartNotFound)
			}
			result = CartResult{Outcome: CartOutcomeDeleted, Cart: Cart{ID: cart.ID, UserID: cart.UserID}}
			return nil
		}
		cart.UpdatedAt = s.now()
		if err := s.carts.Update(txCtx, cart); err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		result = CartResult{Outcome: CartOutcomeUpdated, Cart: cart}
		return nil
	})
	if err != nil {
		return CartResult{}, err
	}

	s.publishResult(ctx, result.Cart.UserID, result)
	if result.Outcome == CartOutcomeDeleted {
		result.Cart = Cart{}
	}
	return result, nil
}

func (s *cartService) DeleteCartByID(ctx context.Context, cartID string) (bool, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return false, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}

	var deleted Cart
	err := runInUnit(ctx, s.unitOfWork, func(txCtx context.Context) error {
		cart, err := s.carts.FindByID(txCtx, cartID)
		if err != nil {
			if isRepositoryNotFound(err) {
				return nil
			}
			return mapRepositoryError(err, ErrCartNotFound)
		}
		if err := s.carts.Delete(txCtx, cart.ID); err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		deleted = cart
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted.ID == "" {
		return false, nil
	}
	s.publishResult(ctx, deleted.UserID, CartResult{Outcome: CartOutcomeDeleted, Cart: deleted})
	return true, nil
}

// ClearCart removes every line of the user's cart. An empty cart cannot exist, so the record
// goes with its lines.
func (s *cartService) ClearCart(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	var cleared Cart
	err := runInUnit(ctx, s.unitOfWork, func(txCtx context.Context) error {
		cart, err := s.carts.FindByUser(txCtx, userID)
		if err != nil {
			if isRepositoryNotFound(err) {
				return nil
			}
			return mapRepositoryError(err, ErrCartNotFound)
		}
		if err := s.carts.Delete(txCtx, cart.ID); err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		cleared = cart
		return nil
	})
	if err != nil {
		return false, err
	}
	if cleared.ID == "" {
		return false, nil
	}
	s.publishResult(ctx, userID, CartResult{Outcome: CartOutcomeDeleted, Cart: cleared})
	return true, nil
}

func (s *cartService) publishResult(ctx context.Context, userID string, result CartResult) {
	if result.Cart.ID == "" {
		return
	}
	eventType := cartEventUpdated
	if result.Outcome == CartOutcomeDeleted {
		eventType = cartEventDeleted
	}
	publish(ctx, s.events, s.logger, DomainEvent{
		Type:        eventType,
		AggregateID: result.Cart.ID,
		UserID:      userID,
		OccurredAt:  s.now(),
		Payload: map[string]any{
			"outcome": string(result.Outcome),
			"lines":   len(result.Cart.Lines),
		},
	})
}

func (s *cartService) now() time.Time {
	return s.clock()
}

func (s *cartService) nextCartID() string {
	return cartIDPrefix + s.newID()
}

func cartHasProduct(cart Cart, productID string) bool {
	for _, line := range cart.Lines {
		if line.ProductID == productID {
			return true
		}
	}
	return false
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
