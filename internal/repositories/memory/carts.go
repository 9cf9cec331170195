package memory

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
)

type cartRepository struct{ store *Store }

var _ repositories.CartRepository = (*cartRepository)(nil)

func (r *cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" || strings.TrimSpace(cart.UserID) == "" {
		return conflict("carts.insert", "cart id and user id are required")
	}
	return r.store.write(ctx, func(journal func(func())) error {
		if _, exists := r.store.carts[cart.ID]; exists {
			return conflict("carts.insert", "cart %s already exists", cart.ID)
		}
		if owner, exists := r.store.cartOwners[cart.UserID]; exists {
			return conflict("carts.insert", "user %s already owns cart %s", cart.UserID, owner)
		}
		journal(restore(r.store.carts, cart.ID))
		journal(restore(r.store.cartOwners, cart.UserID))
		r.store.carts[cart.ID] = cloneCart(cart)
		r.store.cartOwners[cart.UserID] = cart.ID
		return nil
	})
}

func (r *cartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.store.write(ctx, func(journal func(func())) error {
		existing, exists := r.store.carts[cart.ID]
		if !exists {
			return notFound("carts.update", "cart %s not found", cart.ID)
		}
		if existing.UserID != cart.UserID {
			return conflict("carts.update", "cart %s owner cannot change", cart.ID)
		}
		journal(restore(r.store.carts, cart.ID))
		r.store.carts[cart.ID] = cloneCart(cart)
		return nil
	})
}

func (r *cartRepository) Delete(ctx context.Context, cartID string) error {
	return r.store.write(ctx, func(journal func(func())) error {
		existing, exists := r.store.carts[cartID]
		if !exists {
			return notFound("carts.delete", "cart %s not found", cartID)
		}
		journal(restore(r.store.carts, cartID))
		journal(restore(r.store.cartOwners, existing.UserID))
		delete(r.store.carts, cartID)
		delete(r.store.cartOwners, existing.UserID)
		return nil
	})
}

func (r *cartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.store.read(ctx, func() error {
		found, ok := r.store.carts[cartID]
		if !ok {
			return notFound("carts.find", "cart %s not found", cartID)
		}
		cart = cloneCart(found)
		return nil
	})
	return cart, err
}

func (r *cartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.store.read(ctx, func() error {
		cartID, ok := r.store.cartOwners[userID]
		if !ok {
			return notFound("carts.find_by_user", "user %s has no cart", userID)
		}
		cart = cloneCart(r.store.carts[cartID])
		return nil
	})
	return cart, err
}
