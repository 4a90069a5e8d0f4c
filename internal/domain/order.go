package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusCompleted exists in stored data but no transition produces it.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// GuestBuyerID is recorded as the buyer of orders placed without an account.
const GuestBuyerID = "guest"

// CommissionRate is the share of an order total credited to the referrer.
var CommissionRate = decimal.New(10, -2)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusCancelled, OrderStatusCompleted:
		return true
	}
	return false
}

// DeliveryUnlocked reports whether seller-delivered files may be shown.
func (s OrderStatus) DeliveryUnlocked() bool {
	return s == OrderStatusApproved || s == OrderStatusCompleted
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo lists the review transitions: Pending -> Approved and
// Pending/Approved -> Cancelled.
func CanTransitionTo(from, to OrderStatus) bool {
	switch to {
	case OrderStatusApproved:
		return from == OrderStatusPending
	case OrderStatusCancelled:
		return from == OrderStatusPending || from == OrderStatusApproved
	default:
		return false
	}
}

// OrderLineItem is a CartLine frozen at submission time.
type OrderLineItem struct {
	CartLine
	DeliveryRef *string `json:"delivery_ref,omitempty"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	BuyerID          string          `json:"buyer_id"`
	BuyerDisplayName string          `json:"buyer_display_name"`
	BuyerContact     string          `json:"buyer_contact"`
	LineItems        []OrderLineItem `json:"line_items"`
	SellerIDs        []string        `json:"seller_ids"`
	ReferrerID       *string         `json:"referrer_id,omitempty"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	Total            decimal.Decimal `json:"total"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentSnapshot  PaymentSnapshot `json:"payment_snapshot"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewOrderParams carries what checkout knows at submit time.
type NewOrderParams struct {
	BuyerID          string
	BuyerDisplayName string
	BuyerContact     string
	Lines            []CartLine
	ReferrerID       *string
	PaymentMethod    PaymentMethod
	PaymentDetails   PaymentDetails
	Now              time.Time
}

// NewOrder snapshots the cart lines and derives totals, sellers and commission.
func NewOrder(p NewOrderParams) *Order {
	items := make([]OrderLineItem, len(p.Lines))
	lines := make([]CartLine, len(p.Lines))
	for i, l := range p.Lines {
		items[i] = OrderLineItem{CartLine: l}
		lines[i] = l
	}

	buyer := p.BuyerID
	if buyer == "" {
		buyer = GuestBuyerID
	}

	var referrer *string
	if p.ReferrerID != nil && *p.ReferrerID != "" {
		r := *p.ReferrerID
		referrer = &r
	}

	total := SumLines(lines)
	return &Order{
		ID:               uuid.New(),
		BuyerID:          buyer,
		BuyerDisplayName: p.BuyerDisplayName,
		BuyerContact:     p.BuyerContact,
		LineItems:        items,
		SellerIDs:        DistinctSellerIDs(lines),
		ReferrerID:       referrer,
		CommissionAmount: Commission(total, referrer),
		Total:            total,
		PaymentMethod:    p.PaymentMethod,
		PaymentSnapshot:  p.PaymentDetails.Snapshot(p.PaymentMethod),
		Status:           OrderStatusPending,
		CreatedAt:        p.Now,
		UpdatedAt:        p.Now,
	}
}

// Commission is 10% of total when a referrer is attributed, otherwise zero.
func Commission(total decimal.Decimal, referrerID *string) decimal.Decimal {
	if referrerID == nil || *referrerID == "" {
		return decimal.Zero
	}
	return total.Mul(CommissionRate)
}

// DistinctSellerIDs returns the sorted set of non-empty seller ids.
func DistinctSellerIDs(lines []CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.SellerID == nil || *l.SellerID == "" {
			continue
		}
		if _, ok := seen[*l.SellerID]; ok {
			continue
		}
		seen[*l.SellerID] = struct{}{}
		ids = append(ids, *l.SellerID)
	}
	sort.Strings(ids)
	return ids
}

// ProductIDs returns the distinct product ids in line order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.LineItems))
	ids := make([]string, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ScopedToSeller returns a copy holding only the seller's own line items and a
// total computed from those lines. Referral data belongs to the whole basket
// and is dropped. The second result is false when the seller has no lines.
func (o *Order) ScopedToSeller(sellerID string) (*Order, bool) {
	var items []OrderLineItem
	var lines []CartLine
	for _, item := range o.LineItems {
		if item.SellerID != nil && *item.SellerID == sellerID {
			items = append(items, item)
			lines = append(lines, item.CartLine)
		}
	}
	if len(items) == 0 {
		return nil, false
	}

	scoped := *o
	scoped.LineItems = items
	scoped.SellerIDs = []string{sellerID}
	scoped.Total = SumLines(lines)
	scoped.ReferrerID = nil
	scoped.CommissionAmount = decimal.Zero
	scoped.PaymentSnapshot = PaymentSnapshot{Method: o.PaymentMethod}
	return &scoped, true
}

// WithLockedDeliveries hides delivery references until the order is unlocked.
func (o *Order) WithLockedDeliveries() *Order {
	if o.Status.DeliveryUnlocked() {
		return o
	}
	out := *o
	out.LineItems = make([]OrderLineItem, len(o.LineItems))
	for i, item := range o.LineItems {
		item.DeliveryRef = nil
		out.LineItems[i] = item
	}
	return &out
}
