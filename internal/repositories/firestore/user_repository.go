package firestore

import (
	"context"
	"strings"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

type userRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[userDocument]
}

var _ repositories.UserRepository = (*userRepository)(nil)

func (r *userRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	doc, found, err := r.users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, pfirestore.NotFound("users.find", "user %s not found", userID)
	}
	return domain.User{ID: userID, Email: doc.Email, DisplayName: doc.DisplayName, CreatedAt: doc.CreatedAt.UTC()}, nil
}

func (r *userRepository) Upsert(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return pfirestore.Conflict("users.upsert", "user id is required")
	}
	return r.provider.RunInSession(ctx, func(ctx context.Context) error {
		ref, err := r.users.Doc(ctx, user.ID)
		if err != nil {
			return err
		}
		pfirestore.SessionFrom(ctx).Set(ref, userDocument{
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   user.CreatedAt.UTC(),
		})
		return nil
	})
}
