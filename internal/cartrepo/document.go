package cartrepo

import (
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/shopspring/decimal"
)

// Prices are stored as decimal strings; decimal.Decimal has no BSON codec.
type cartDocument struct {
	UserID    string             `bson:"user_id"`
	Lines     []lineDocument     `bson:"lines"`
	Favorites []favoriteDocument `bson:"favorites"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string    `bson:"product_id"`
	SellerID  *string   `bson:"seller_id,omitempty"`
	Title     string    `bson:"title"`
	UnitPrice string    `bson:"unit_price"`
	ImageRef  *string   `bson:"image_ref,omitempty"`
	Category  *string   `bson:"category,omitempty"`
	AddedAt   time.Time `bson:"added_at"`
}

type favoriteDocument struct {
	ProductID string    `bson:"product_id"`
	Title     string    `bson:"title"`
	UnitPrice string    `bson:"unit_price"`
	ImageRef  *string   `bson:"image_ref,omitempty"`
	Category  *string   `bson:"category,omitempty"`
	SavedAt   time.Time `bson:"saved_at"`
}

func toLineDocument(l domain.CartLine) lineDocument {
	return lineDocument{
		ProductID: l.ProductID,
		SellerID:  l.SellerID,
		Title:     l.Title,
		UnitPrice: l.UnitPrice.String(),
		ImageRef:  l.ImageRef,
		Category:  l.Category,
		AddedAt:   l.AddedAt,
	}
}

func toFavoriteDocument(f domain.FavoriteEntry) favoriteDocument {
	return favoriteDocument{
		ProductID: f.ProductID,
		Title:     f.Title,
		UnitPrice: f.UnitPrice.String(),
		ImageRef:  f.ImageRef,
		Category:  f.Category,
		SavedAt:   f.SavedAt,
	}
}

func (d *cartDocument) toState() (*domain.CartState, error) {
	state := &domain.CartState{
		Lines:     make([]domain.CartLine, 0, len(d.Lines)),
		Favorites: make([]domain.FavoriteEntry, 0, len(d.Favorites)),
	}
	for _, l := range d.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, err
		}
		state.Lines = append(state.Lines, domain.CartLine{
			ProductID: l.ProductID,
			SellerID:  l.SellerID,
			Title:     l.Title,
			UnitPrice: price,
			ImageRef:  l.ImageRef,
			Category:  l.Category,
			AddedAt:   l.AddedAt,
		})
	}
	for _, f := range d.Favorites {
		price, err := decimal.NewFromString(f.UnitPrice)
		if err != nil {
			return nil, err
		}
		state.Favorites = append(state.Favorites, domain.FavoriteEntry{
			ProductID: f.ProductID,
			Title:     f.Title,
			UnitPrice: price,
			ImageRef:  f.ImageRef,
			Category:  f.Category,
			SavedAt:   f.SavedAt,
		})
	}
	return state, nil
}
