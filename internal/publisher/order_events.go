package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

const EventTypeOrderPlaced = "order.placed"

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("order event publisher unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderPlacedEvent tells sellers that an order with their items exists.
type OrderPlacedEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerIDs  []string  `json:"seller_ids"`
	ProductIDs []string  `json:"product_ids"`
	Total      string    `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderEventPublisher struct {
	writer  messageWriter
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	log     *logger.Logger
}

func NewOrderEventPublisher(brokers []string, topic string, log *logger.Logger) *OrderEventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newOrderEventPublisher(w, log)
}

func newOrderEventPublisher(w messageWriter, log *logger.Logger) *OrderEventPublisher {
	log = log.With("component", "order_event_publisher")
	settings := gobreaker.Settings{
		Name:        "kafka-order-events",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &OrderEventPublisher{
		writer:  w,
		cb:      gobreaker.NewCircuitBreaker[struct{}](settings),
		timeout: 5 * time.Second,
		log:     log,
	}
}

func (p *OrderEventPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(OrderPlacedEvent{
		EventType:  EventTypeOrderPlaced,
		OrderID:    order.ID.String(),
		BuyerID:    order.BuyerID,
		SellerIDs:  order.SellerIDs,
		ProductIDs: order.ProductIDs(),
		Total:      order.Total.String(),
		CreatedAt:  order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return struct{}{}, p.writer.WriteMessages(writeCtx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("write order event: %w", err)
	}
	return nil
}

func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
