package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	m        sync.Mutex
	messages []kafka.Message
	err      error
	calls    int
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

func testOrder() *domain.Order {
	seller := "s1"
	return domain.NewOrder(domain.NewOrderParams{
		BuyerID: "b1",
		Lines: []domain.CartLine{
			{ProductID: "p1", SellerID: &seller, UnitPrice: decimal.NewFromInt(12000)},
		},
		PaymentMethod: domain.PaymentMethodMTNMoMo,
		Now:           time.Now().UTC(),
	})
}

func TestPublishOrderPlaced(t *testing.T) {
	w := &mockWriter{}
	p := newOrderEventPublisher(w, logger.NewNop())
	order := testOrder()

	require.NoError(t, p.PublishOrderPlaced(context.Background(), order))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, order.ID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventTypeOrderPlaced, string(msg.Headers[0].Value))

	var event OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, order.ID.String(), event.OrderID)
	assert.Equal(t, []string{"s1"}, event.SellerIDs)
	assert.Equal(t, []string{"p1"}, event.ProductIDs)
	assert.Equal(t, "12000", event.Total)
}

func TestPublishOrderPlaced_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := newOrderEventPublisher(w, logger.NewNop())

	err := p.PublishOrderPlaced(context.Background(), testOrder())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestPublishOrderPlaced_BreakerOpens(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := newOrderEventPublisher(w, logger.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Error(t, p.PublishOrderPlaced(ctx, testOrder()))
	}

	err := p.PublishOrderPlaced(ctx, testOrder())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 5, w.calls, "open breaker must not reach the writer")
}
