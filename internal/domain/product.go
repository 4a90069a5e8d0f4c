package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog metadata the core reads when building cart lines,
// favorites and order snapshots.
type Product struct {
	ID         string
	SellerID   *string
	Title      string
	Price      decimal.Decimal
	ImageRef   *string
	Category   *string
	SalesCount int64
	CreatedAt  time.Time
}

func (p Product) CartLine(now time.Time) CartLine {
	return CartLine{
		ProductID: p.ID,
		SellerID:  p.SellerID,
		Title:     p.Title,
		UnitPrice: p.Price,
		ImageRef:  p.ImageRef,
		Category:  p.Category,
		AddedAt:   now,
	}
}

func (p Product) FavoriteEntry(now time.Time) FavoriteEntry {
	return FavoriteEntry{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		ImageRef:  p.ImageRef,
		Category:  p.Category,
		SavedAt:   now,
	}
}
