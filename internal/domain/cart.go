package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one unit of a unique digital good held in a cart.
type CartLine struct {
	ProductID string          `json:"product_id"`
	SellerID  *string         `json:"seller_id,omitempty"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  *string         `json:"image_ref,omitempty"`
	Category  *string         `json:"category,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

type FavoriteEntry struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  *string         `json:"image_ref,omitempty"`
	Category  *string         `json:"category,omitempty"`
	SavedAt   time.Time       `json:"saved_at"`
}

// CartState is the persisted shape of a cart together with its favorites set.
// Both local and remote stores read and write this shape.
type CartState struct {
	Lines     []CartLine      `json:"lines"`
	Favorites []FavoriteEntry `json:"favorites"`
}

func (s CartState) IsEmpty() bool {
	return len(s.Lines) == 0 && len(s.Favorites) == 0
}

// SumLines returns the sum of unit prices. There is no quantity: each line is one unit.
func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice)
	}
	return total
}
