// Package realtime carries live cart subscriptions and user-facing
// notifications over Redis pub/sub, so every process serving the same user
// sees the same change stream.
package realtime

import (
	"context"
	"fmt"

	"github.com/fjod/go_market/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

type Hub struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewHub(rdb *goredis.Client, log *logger.Logger) *Hub {
	return &Hub{
		log: log.With("component", "realtime_hub"),
		rdb: rdb,
	}
}

func cartChannel(userID string) string {
	return fmt.Sprintf("cart-sync:%s", userID)
}

// NotifyChanged announces that the remote cart of userID was written.
func (h *Hub) NotifyChanged(ctx context.Context, userID string) error {
	if err := h.rdb.Publish(ctx, cartChannel(userID), "changed").Err(); err != nil {
		return fmt.Errorf("publish cart change: %w", err)
	}
	return nil
}

// Subscribe returns a signal channel that fires at least once after each
// change to userID's cart. Bursts are coalesced. The channel closes when ctx
// is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan struct{}, error) {
	sub := h.rdb.Subscribe(ctx, cartChannel(userID))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
