package cartrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetState(ctx context.Context, userID string) (*domain.CartState, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	state, err := doc.toState()
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", userID, err)
	}
	return state, nil
}

// ensureDocument creates an empty cart document for userID if none exists.
func (m *mongoRepository) ensureDocument(ctx context.Context, userID string, now time.Time) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"lines":      bson.A{},
			"favorites":  bson.A{},
			"created_at": now,
			"updated_at": now,
		},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to ensure cart: %w", err)
	}
	return nil
}

func (m *mongoRepository) AddLine(ctx context.Context, userID string, line domain.CartLine) (bool, error) {
	now := time.Now()
	if err := m.ensureDocument(ctx, userID, now); err != nil {
		return false, err
	}

	// The $ne guard keeps product ids unique inside one atomic update.
	filter := bson.M{
		"user_id":          userID,
		"lines.product_id": bson.M{"$ne": line.ProductID},
	}
	update := bson.M{
		"$push": bson.M{"lines": toLineDocument(line)},
		"$set":  bson.M{"updated_at": now},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to add line: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *mongoRepository) RemoveLine(ctx context.Context, userID string, productID string) error {
	update := bson.M{
		"$pull": bson.M{"lines": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) AddFavorite(ctx context.Context, userID string, fav domain.FavoriteEntry) (bool, error) {
	now := time.Now()
	if err := m.ensureDocument(ctx, userID, now); err != nil {
		return false, err
	}

	filter := bson.M{
		"user_id":              userID,
		"favorites.product_id": bson.M{"$ne": fav.ProductID},
	}
	update := bson.M{
		"$push": bson.M{"favorites": toFavoriteDocument(fav)},
		"$set":  bson.M{"updated_at": now},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *mongoRepository) RemoveFavorite(ctx context.Context, userID string, productID string) error {
	update := bson.M{
		"$pull": bson.M{"favorites": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes is exported for startup; the repository type stays private.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}
