package firestore

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

// cartRepository stores carts alongside a cartOwners/{userId} document. Creating the owner
// document inside the same transaction as the cart keeps one cart per user.
type cartRepository struct {
	provider *pfirestore.Provider
	carts    *pfirestore.Collection[cartDocument]
	owners   *pfirestore.Collection[cartOwnerDocument]
}

var _ repositories.CartRepository = (*cartRepository)(nil)

func (r *cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" || strings.TrimSpace(cart.UserID) == "" {
		return pfirestore.Conflict("carts.insert", "cart id and user id are required")
	}
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ownerRef, err := r.owners.Doc(ctx, cart.UserID)
		if err != nil {
			return err
		}
		if _, taken, err := pfirestore.GetDoc[cartOwnerDocument](ctx, ownerRef); err != nil {
			return err
		} else if taken {
			return pfirestore.Conflict("carts.insert", "user %s already owns a cart", cart.UserID)
		}
		cartRef, err := r.carts.Doc(ctx, cart.ID)
		if err != nil {
			return err
		}
		session := pfirestore.SessionFrom(ctx)
		session.Create(ownerRef, cartOwnerDocument{CartID: cart.ID})
		session.Create(cartRef, newCartDocument(cart))
		return nil
	})
}

func (r *cartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.carts.Doc(ctx, cart.ID)
		if err != nil {
			return err
		}
		existing, found, err := pfirestore.GetDoc[cartDocument](ctx, ref)
		if err != nil {
			return err
		}
		if !found || existing.UserID != cart.UserID {
			return pfirestore.NotFound("carts.update", "cart %s not found for user %s", cart.ID, cart.UserID)
		}
		pfirestore.SessionFrom(ctx).Set(ref, newCartDocument(cart))
		return nil
	})
}

// Delete removes the cart and releases the owner slot of its user.
func (r *cartRepository) Delete(ctx context.Context, cartID string) error {
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.carts.Doc(ctx, cartID)
		if err != nil {
			return err
		}
		existing, found, err := pfirestore.GetDoc[cartDocument](ctx, ref)
		if err != nil {
			return err
		}
		if !found {
			return pfirestore.NotFound("carts.delete", "cart %s not found", cartID)
		}
		ownerRef, err := r.owners.Doc(ctx, existing.UserID)
		if err != nil {
			return err
		}
		owner, owned, err := pfirestore.GetDoc[cartOwnerDocument](ctx, ownerRef)
		if err != nil {
			return err
		}
		session := pfirestore.SessionFrom(ctx)
		if owned && owner.CartID == cartID {
			session.Delete(ownerRef)
		}
		session.Delete(ref)
		return nil
	})
}

func (r *cartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	doc, found, err := r.carts.Get(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !found {
		return domain.Cart{}, pfirestore.NotFound("carts.find", "cart %s not found", cartID)
	}
	return doc.toDomain(cartID), nil
}

// FindByUser resolves the cart through the owner document.
func (r *cartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	owner, found, err := r.owners.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !found {
		return domain.Cart{}, pfirestore.NotFound("carts.find_by_user", "no cart for user %s", userID)
	}
	cart, err := r.FindByID(ctx, owner.CartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.UserID != userID {
		return domain.Cart{}, pfirestore.NotFound("carts.find_by_user", "no cart for user %s", userID)
	}
	return cart, nil
}
