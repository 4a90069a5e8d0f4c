package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/localstore"
)

// LocalStore is the device-local key/value store.
type LocalStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
}

// RemoteCarts is the account-bound cart store.
type RemoteCarts interface {
	Load(ctx context.Context, userID string) (domain.CartState, error)
	AddLine(ctx context.Context, userID string, line domain.CartLine) error
	RemoveLine(ctx context.Context, userID, productID string) error
	PutFavorite(ctx context.Context, userID string, fav domain.FavoriteEntry) error
	RemoveFavorite(ctx context.Context, userID, productID string) error
}

// Watcher opens a live subscription to a user's remote cart. Each value on
// the channel is a full snapshot; cancel ends the subscription.
type Watcher interface {
	Watch(ctx context.Context, userID string) (<-chan domain.CartState, func(), error)
}

// localBackend rewrites the whole device snapshot on every change.
type localBackend struct {
	store    LocalStore
	deviceID string
	snapshot func() domain.CartState
}

func (b *localBackend) save(ctx context.Context) error {
	return saveLocalState(ctx, b.store, b.deviceID, b.snapshot())
}

func (b *localBackend) AddLine(ctx context.Context, _ domain.CartLine) error { return b.save(ctx) }
func (b *localBackend) RemoveLine(ctx context.Context, _ string) error       { return b.save(ctx) }
func (b *localBackend) PutFavorite(ctx context.Context, _ domain.FavoriteEntry) error {
	return b.save(ctx)
}
func (b *localBackend) RemoveFavorite(ctx context.Context, _ string) error { return b.save(ctx) }

type remoteBackend struct {
	remote RemoteCarts
	userID string
}

func (b *remoteBackend) AddLine(ctx context.Context, line domain.CartLine) error {
	return b.remote.AddLine(ctx, b.userID, line)
}

func (b *remoteBackend) RemoveLine(ctx context.Context, productID string) error {
	return b.remote.RemoveLine(ctx, b.userID, productID)
}

func (b *remoteBackend) PutFavorite(ctx context.Context, fav domain.FavoriteEntry) error {
	return b.remote.PutFavorite(ctx, b.userID, fav)
}

func (b *remoteBackend) RemoveFavorite(ctx context.Context, productID string) error {
	return b.remote.RemoveFavorite(ctx, b.userID, productID)
}

func loadLocalState(ctx context.Context, store LocalStore, deviceID string) (domain.CartState, error) {
	raw, err := store.Get(ctx, localstore.BucketCarts, deviceID)
	if errors.Is(err, localstore.ErrNotFound) {
		return domain.CartState{}, nil
	}
	if err != nil {
		return domain.CartState{}, err
	}
	var state domain.CartState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.CartState{}, fmt.Errorf("decode local cart: %w", err)
	}
	return state, nil
}

func saveLocalState(ctx context.Context, store LocalStore, deviceID string, state domain.CartState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	return store.Put(ctx, localstore.BucketCarts, deviceID, raw)
}
