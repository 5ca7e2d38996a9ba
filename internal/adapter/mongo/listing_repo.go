package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/price-tracker/tracker-service/internal/app/config"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listingCollectionName = "listings"

type listingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ListingRepository {
	return &listingRepository{
		collection: client.Database(cfg.Database).Collection(listingCollectionName),
	}
}

func (r *listingRepository) Create(ctx context.Context, listing *entity.Listing) (string, error) {
	listing.ID = primitive.NewObjectID().Hex()

	if _, err := r.collection.InsertOne(ctx, listing); err != nil {
		return "", fmt.Errorf("failed to create listing: %w", err)
	}
	return listing.ID, nil
}

func (r *listingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	var listing entity.Listing
	err := r.collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing %s: %w", listingID, err)
	}
	return &listing, nil
}

func (r *listingRepository) ListByUser(ctx context.Context, userID string) ([]entity.Listing, error) {
	return r.list(ctx, bson.M{"user_id": userID}, nil)
}

func (r *listingRepository) ListAll(ctx context.Context) ([]entity.Listing, error) {
	return r.list(ctx, bson.M{}, nil)
}

func (r *listingRepository) ListLowestPriced(ctx context.Context, limit int64) ([]entity.Listing, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "current_price", Value: 1}}).
		SetLimit(limit)
	return r.list(ctx, bson.M{}, opts)
}

func (r *listingRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]entity.Listing, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.collection.Find(ctx, filter, opts)
	} else {
		cursor, err = r.collection.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}

	var listings []entity.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, nil
}

func (r *listingRepository) UpdateDetails(ctx context.Context, params repository.UpdateListingParams) error {
	filter := bson.M{"_id": params.ListingID, "user_id": params.UserID}
	update := bson.M{"$set": bson.M{
		"name":       params.Name,
		"url":        params.URL,
		"website":    params.Website,
		"updated_at": nowUTC(),
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", params.ListingID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePriceData applies one reconciliation result in a single document
// update, so a listing is never left with a history entry but stale
// extrema or the other way around.
func (r *listingRepository) UpdatePriceData(ctx context.Context, params repository.PriceUpdateParams) error {
	set := bson.M{
		"lowest_price":  params.LowestPrice,
		"highest_price": params.HighestPrice,
		"last_checked":  params.CheckedAt,
		"updated_at":    params.CheckedAt,
	}
	update := bson.M{"$set": set}

	if params.Extracted {
		set["current_price"] = params.CurrentPrice
		update["$push"] = bson.M{"historical_prices": entity.PricePoint{
			Price:     params.CurrentPrice,
			CheckedAt: params.CheckedAt,
		}}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": params.ListingID}, update)
	if err != nil {
		return fmt.Errorf("failed to update price data for listing %s: %w", params.ListingID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, listingID, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": listingID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
