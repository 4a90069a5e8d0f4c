// Package review is the order ledger seen by operators, sellers and buyers.
// Every read path applies the caller's scope before returning an order.
package review

import (
	"context"
	"strings"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/google/uuid"
)

type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error)
	SetDeliveryRef(ctx context.Context, id uuid.UUID, productID, ref string) (*domain.Order, error)
}

type Ledger struct {
	store OrderStore
	log   *logger.Logger
}

func NewLedger(store OrderStore, log *logger.Logger) *Ledger {
	return &Ledger{store: store, log: log.With("component", "review")}
}

// List returns all orders for operators, the seller's slice of each order
// carrying their goods for sellers, and own orders for everyone else.
func (l *Ledger) List(ctx context.Context, who domain.Identity) ([]*domain.Order, error) {
	if who.IsAnonymous() {
		return nil, domain.ErrForbidden
	}

	var (
		orders []*domain.Order
		err    error
	)
	switch {
	case who.IsOperator():
		orders, err = l.store.ListOrders(ctx)
	case who.IsSeller():
		orders, err = l.store.ListOrdersBySeller(ctx, who.UserID)
	default:
		orders, err = l.store.ListOrdersByBuyer(ctx, who.UserID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if scoped, ok := scope(who, o); ok {
			out = append(out, scoped)
		}
	}
	return out, nil
}

// Get applies the same scope as List. An order outside the caller's scope
// reads as not found.
func (l *Ledger) Get(ctx context.Context, who domain.Identity, id uuid.UUID) (*domain.Order, error) {
	if who.IsAnonymous() {
		return nil, domain.ErrForbidden
	}
	order, err := l.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	scoped, ok := scope(who, order)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return scoped, nil
}

// SetStatus applies a review transition. Only operators may decide orders.
func (l *Ledger) SetStatus(ctx context.Context, operator domain.Identity, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !operator.IsOperator() {
		return nil, domain.ErrForbidden
	}
	if to != domain.OrderStatusApproved && to != domain.OrderStatusCancelled {
		return nil, domain.NewValidationError("status", "status must be APPROVED or CANCELLED")
	}

	order, err := l.store.UpdateOrderStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}
	l.log.Info("order status changed", "order_id", id, "status", to.String(), "operator_id", operator.UserID)
	return order, nil
}

// AttachDelivery stores a file reference on one of the seller's own line items.
func (l *Ledger) AttachDelivery(ctx context.Context, seller domain.Identity, id uuid.UUID, productID, ref string) (*domain.Order, error) {
	if !seller.IsSeller() {
		return nil, domain.ErrForbidden
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewValidationError("delivery_ref", "delivery reference is required")
	}

	order, err := l.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsLine(order, seller.UserID, productID) {
		return nil, domain.ErrForbidden
	}

	updated, err := l.store.SetDeliveryRef(ctx, id, productID, ref)
	if err != nil {
		return nil, err
	}
	l.log.Info("delivery attached", "order_id", id, "product_id", productID, "seller_id", seller.UserID)

	scoped, _ := scope(seller, updated)
	return scoped, nil
}

func scope(who domain.Identity, o *domain.Order) (*domain.Order, bool) {
	switch {
	case who.IsOperator():
		return o.WithLockedDeliveries(), true
	case who.IsSeller():
		scoped, ok := o.ScopedToSeller(who.UserID)
		if !ok {
			return nil, false
		}
		return scoped.WithLockedDeliveries(), true
	default:
		if o.BuyerID != who.UserID {
			return nil, false
		}
		return o.WithLockedDeliveries(), true
	}
}

func ownsLine(o *domain.Order, sellerID, productID string) bool {
	for _, item := range o.LineItems {
		if item.ProductID == productID && item.SellerID != nil && *item.SellerID == sellerID {
			return true
		}
	}
	return false
}
