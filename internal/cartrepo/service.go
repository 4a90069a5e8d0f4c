package cartrepo

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_market/internal/cache"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"golang.org/x/sync/singleflight"
)

// ChangeNotifier is told after every successful remote write so live
// subscribers for the user can reload.
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context, userID string) error
}

// Service is the account-bound cart store used in authenticated mode.
// Reads go through the cache; writes hit MongoDB, drop the cache entry and
// fan out a change notification.
type Service struct {
	repo     CartRepository
	cache    cache.CartCache
	notifier ChangeNotifier
	log      *logger.Logger
	sfg      singleflight.Group
}

func NewService(repo CartRepository, c cache.CartCache, notifier ChangeNotifier, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		notifier: notifier,
		log:      log.With("component", "cartrepo"),
	}
}

func (s *Service) Load(ctx context.Context, userID string) (domain.CartState, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		state, err := s.cache.Get(ctx, userID)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", "user_id", userID, "error", err)
		}

		state, err = s.repo.GetState(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return &domain.CartState{}, nil
		}
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, userID, state); err != nil {
			s.log.Warn("cache set failed", "user_id", userID, "error", err)
		}
		return state, nil
	})
	if err != nil {
		return domain.CartState{}, err
	}
	return *v.(*domain.CartState), nil
}

func (s *Service) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	added, err := s.repo.AddLine(ctx, userID, line)
	if err != nil {
		return err
	}
	if added {
		s.changed(userID)
	}
	return nil
}

func (s *Service) RemoveLine(ctx context.Context, userID, productID string) error {
	err := s.repo.RemoveLine(ctx, userID, productID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.pruneIfEmpty(ctx, userID)
	s.changed(userID)
	return nil
}

func (s *Service) PutFavorite(ctx context.Context, userID string, fav domain.FavoriteEntry) error {
	added, err := s.repo.AddFavorite(ctx, userID, fav)
	if err != nil {
		return err
	}
	if added {
		s.changed(userID)
	}
	return nil
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, productID string) error {
	err := s.repo.RemoveFavorite(ctx, userID, productID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.pruneIfEmpty(ctx, userID)
	s.changed(userID)
	return nil
}

// pruneIfEmpty deletes the account document once its last line and last
// favorite are gone.
func (s *Service) pruneIfEmpty(ctx context.Context, userID string) {
	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrCartNotFound) {
			s.log.Warn("cart reload after removal failed", "user_id", userID, "error", err)
		}
		return
	}
	if !state.IsEmpty() {
		return
	}
	if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, ErrCartNotFound) {
		s.log.Warn("empty cart delete failed", "user_id", userID, "error", err)
	}
}

// changed drops the cached snapshot and notifies subscribers. Both are
// detached from the request context so a cancelled caller still invalidates.
func (s *Service) changed(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", "user_id", userID, "error", err)
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyChanged(ctx, userID); err != nil {
		s.log.Warn("change notification failed", "user_id", userID, "error", err)
	}
}
