package cartrepo

import (
	"context"
	"errors"

	"github.com/fjod/go_market/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable, account-bound cart/favorites store.
// Every mutation is a single-document atomic update.
type CartRepository interface {
	GetState(ctx context.Context, userID string) (*domain.CartState, error)
	// AddLine inserts the line unless its product is already present.
	AddLine(ctx context.Context, userID string, line domain.CartLine) (bool, error)
	RemoveLine(ctx context.Context, userID string, productID string) error
	AddFavorite(ctx context.Context, userID string, fav domain.FavoriteEntry) (bool, error)
	RemoveFavorite(ctx context.Context, userID string, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}
