// Package fulfillment creates an order and then runs its side effects as an
// ordered pipeline. Only order creation can fail the submission; every later
// step is best-effort and isolated from the others.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/shopspring/decimal"
)

var ErrOrderNotCreated = errors.New("order could not be created")

type OrderWriter interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// CartClearer removes purchased lines from the buyer's cart.
type CartClearer interface {
	ClearLine(ctx context.Context, productID string) error
}

type SalesCounter interface {
	IncrementSales(ctx context.Context, productID string) error
}

type CommissionCreditor interface {
	CreditPoints(ctx context.Context, userID string, amount decimal.Decimal) error
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
}

type Step string

const (
	StepClearCart    Step = "clear_cart"
	StepSalesCounter Step = "sales_counter"
	StepCommission   Step = "commission"
	StepPublishEvent Step = "publish_event"
)

// SideEffectError is a best-effort step that failed after the order was
// created. It is reported, never returned as the submission result.
type SideEffectError struct {
	Step    Step
	Subject string
	Err     error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Subject, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

// Report is the outcome of a successful submission.
type Report struct {
	Order    *domain.Order
	Warnings []*SideEffectError
}

func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

type Coordinator struct {
	orders    OrderWriter
	counter   SalesCounter
	creditor  CommissionCreditor
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewCoordinator wires the pipeline. publisher may be nil.
func NewCoordinator(orders OrderWriter, counter SalesCounter, creditor CommissionCreditor, publisher EventPublisher, log *logger.Logger) *Coordinator {
	return &Coordinator{
		orders:    orders,
		counter:   counter,
		creditor:  creditor,
		publisher: publisher,
		log:       log.With("component", "fulfillment"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Fulfill creates the order from params and runs the side effects in order:
// clear cart lines, bump sales counters, credit the referrer, publish the
// order event.
func (c *Coordinator) Fulfill(ctx context.Context, params domain.NewOrderParams, cart CartClearer) (*Report, error) {
	if len(params.Lines) == 0 {
		return nil, domain.NewValidationError("cart", "cart is empty, nothing to checkout")
	}
	if params.Now.IsZero() {
		params.Now = c.now()
	}

	order := domain.NewOrder(params)
	if err := c.orders.CreateOrder(ctx, order); err != nil {
		c.log.Error("order creation failed", "buyer_id", order.BuyerID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrOrderNotCreated, err)
	}
	log := c.log.With("order_id", order.ID.String())
	log.Info("order created", "buyer_id", order.BuyerID, "total", order.Total.String(), "lines", len(order.LineItems))

	report := &Report{Order: order}
	warn := func(step Step, subject string, err error) {
		log.Warn("side effect failed", "step", string(step), "subject", subject, "error", err)
		report.Warnings = append(report.Warnings, &SideEffectError{Step: step, Subject: subject, Err: err})
	}

	if cart != nil {
		for _, item := range order.LineItems {
			if err := cart.ClearLine(ctx, item.ProductID); err != nil {
				warn(StepClearCart, item.ProductID, err)
			}
		}
	}

	for _, productID := range order.ProductIDs() {
		if err := c.counter.IncrementSales(ctx, productID); err != nil {
			warn(StepSalesCounter, productID, err)
		}
	}

	if order.ReferrerID != nil && order.CommissionAmount.IsPositive() {
		if err := c.creditor.CreditPoints(ctx, *order.ReferrerID, order.CommissionAmount); err != nil {
			warn(StepCommission, *order.ReferrerID, err)
		} else {
			log.Info("commission credited", "referrer_id", *order.ReferrerID, "amount", order.CommissionAmount.String())
		}
	}

	if c.publisher != nil {
		if err := c.publisher.PublishOrderPlaced(ctx, order); err != nil {
			warn(StepPublishEvent, order.ID.String(), err)
		}
	}

	return report, nil
}
