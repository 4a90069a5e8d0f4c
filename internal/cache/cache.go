package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_market/internal/domain"
)

// CartCache holds remote cart snapshots keyed by user id.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.CartState, error)
	Set(ctx context.Context, userID string, state *domain.CartState) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
