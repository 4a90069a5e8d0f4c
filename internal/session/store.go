package session

import (
	"context"
	"sync"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/shopspring/decimal"
)

// Backend receives every mutation after it has been applied locally.
type Backend interface {
	AddLine(ctx context.Context, line domain.CartLine) error
	RemoveLine(ctx context.Context, productID string) error
	PutFavorite(ctx context.Context, fav domain.FavoriteEntry) error
	RemoveFavorite(ctx context.Context, productID string) error
}

// Store is the in-memory cart and favorites view of one session. Mutations
// apply locally first and are then written through to the active backend.
// Backend failures are logged and never undo the local change.
type Store struct {
	mu        sync.RWMutex
	lines     []domain.CartLine
	inCart    map[string]struct{}
	favorites []domain.FavoriteEntry
	inFavs    map[string]struct{}
	backend   Backend
	log       *logger.Logger
}

func NewStore(log *logger.Logger) *Store {
	return &Store{
		inCart: make(map[string]struct{}),
		inFavs: make(map[string]struct{}),
		log:    log,
	}
}

func (s *Store) setBackend(b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
}

// AddToCart inserts the line unless its product is already in the cart.
// It reports whether the cart changed.
func (s *Store) AddToCart(ctx context.Context, line domain.CartLine) bool {
	s.mu.Lock()
	if _, ok := s.inCart[line.ProductID]; ok {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines, line)
	s.inCart[line.ProductID] = struct{}{}
	b := s.backend
	s.mu.Unlock()

	if b != nil {
		if err := b.AddLine(ctx, line); err != nil {
			s.log.Warn("cart add not persisted", "product_id", line.ProductID, "error", err)
		}
	}
	return true
}

// RemoveFromCart deletes the product's line if present.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) bool {
	removed, b := s.removeLine(productID)
	if !removed {
		return false
	}
	if b != nil {
		if err := b.RemoveLine(ctx, productID); err != nil {
			s.log.Warn("cart remove not persisted", "product_id", productID, "error", err)
		}
	}
	return true
}

// ClearLine removes a purchased line and, unlike RemoveFromCart, returns the
// backend error so the caller can report it.
func (s *Store) ClearLine(ctx context.Context, productID string) error {
	_, b := s.removeLine(productID)
	if b == nil {
		return nil
	}
	return b.RemoveLine(ctx, productID)
}

func (s *Store) removeLine(productID string) (bool, Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inCart[productID]; !ok {
		return false, s.backend
	}
	delete(s.inCart, productID)
	for i, l := range s.lines {
		if l.ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			break
		}
	}
	return true, s.backend
}

// ToggleFavorite inverts membership and reports whether the product is now a
// favorite.
func (s *Store) ToggleFavorite(ctx context.Context, fav domain.FavoriteEntry) bool {
	s.mu.Lock()
	_, present := s.inFavs[fav.ProductID]
	if present {
		delete(s.inFavs, fav.ProductID)
		for i, f := range s.favorites {
			if f.ProductID == fav.ProductID {
				s.favorites = append(s.favorites[:i], s.favorites[i+1:]...)
				break
			}
		}
	} else {
		s.favorites = append(s.favorites, fav)
		s.inFavs[fav.ProductID] = struct{}{}
	}
	b := s.backend
	s.mu.Unlock()

	if b != nil {
		var err error
		if present {
			err = b.RemoveFavorite(ctx, fav.ProductID)
		} else {
			err = b.PutFavorite(ctx, fav)
		}
		if err != nil {
			s.log.Warn("favorite toggle not persisted", "product_id", fav.ProductID, "error", err)
		}
	}
	return !present
}

func (s *Store) IsInCart(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inCart[productID]
	return ok
}

func (s *Store) IsInFavorites(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inFavs[productID]
	return ok
}

// Cart returns a copy of the lines in insertion order.
func (s *Store) Cart() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Favorites() []domain.FavoriteEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FavoriteEntry, len(s.favorites))
	copy(out, s.favorites)
	return out
}

func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SumLines(s.lines)
}

func (s *Store) Snapshot() domain.CartState {
	return domain.CartState{Lines: s.Cart(), Favorites: s.Favorites()}
}

// Replace swaps the whole view. Duplicate product ids keep the first entry.
func (s *Store) Replace(state domain.CartState) {
	lines := make([]domain.CartLine, 0, len(state.Lines))
	inCart := make(map[string]struct{}, len(state.Lines))
	for _, l := range state.Lines {
		if _, ok := inCart[l.ProductID]; ok {
			continue
		}
		inCart[l.ProductID] = struct{}{}
		lines = append(lines, l)
	}

	favs := make([]domain.FavoriteEntry, 0, len(state.Favorites))
	inFavs := make(map[string]struct{}, len(state.Favorites))
	for _, f := range state.Favorites {
		if _, ok := inFavs[f.ProductID]; ok {
			continue
		}
		inFavs[f.ProductID] = struct{}{}
		favs = append(favs, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines, s.inCart = lines, inCart
	s.favorites, s.inFavs = favs, inFavs
}
