package realtime

import (
	"context"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
)

// CartLoader reads the current remote cart state of a user.
type CartLoader interface {
	Load(ctx context.Context, userID string) (domain.CartState, error)
}

// CartWatcher turns change signals into full cart snapshots.
type CartWatcher struct {
	hub    *Hub
	loader CartLoader
	log    *logger.Logger
}

func NewCartWatcher(hub *Hub, loader CartLoader, log *logger.Logger) *CartWatcher {
	return &CartWatcher{
		hub:    hub,
		loader: loader,
		log:    log.With("component", "cart_watcher"),
	}
}

// Watch delivers the current snapshot immediately and a fresh one after every
// change. The returned cancel func stops delivery and closes the channel.
func (w *CartWatcher) Watch(ctx context.Context, userID string) (<-chan domain.CartState, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	signals, err := w.hub.Subscribe(ctx, userID)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan domain.CartState, 1)
	go func() {
		defer close(out)

		w.push(ctx, userID, out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				w.push(ctx, userID, out)
			}
		}
	}()

	return out, cancel, nil
}

func (w *CartWatcher) push(ctx context.Context, userID string, out chan<- domain.CartState) {
	state, err := w.loader.Load(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("snapshot load failed", "user_id", userID, "error", err)
		}
		return
	}
	select {
	case out <- state:
	case <-ctx.Done():
	}
}
