package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/price-tracker/tracker-service/internal/app/config"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const alertCollectionName = "price_alerts"

type alertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.AlertRepository {
	return &alertRepository{
		collection: client.Database(cfg.Database).Collection(alertCollectionName),
	}
}

func (r *alertRepository) Create(ctx context.Context, alert *entity.PriceAlert) (string, error) {
	alert.ID = primitive.NewObjectID().Hex()

	if _, err := r.collection.InsertOne(ctx, alert); err != nil {
		return "", fmt.Errorf("failed to create alert: %w", err)
	}
	return alert.ID, nil
}

func (r *alertRepository) GetByID(ctx context.Context, alertID string) (*entity.PriceAlert, error) {
	var alert entity.PriceAlert
	err := r.collection.FindOne(ctx, bson.M{"_id": alertID}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", alertID, err)
	}
	return &alert, nil
}

func (r *alertRepository) ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	return r.list(ctx, bson.M{"user_id": userID})
}

func (r *alertRepository) ListActiveByListing(ctx context.Context, listingID string) ([]entity.PriceAlert, error) {
	return r.list(ctx, bson.M{"listing_id": listingID, "is_active": true})
}

func (r *alertRepository) list(ctx context.Context, filter bson.M) ([]entity.PriceAlert, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	var alerts []entity.PriceAlert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) Update(ctx context.Context, params repository.UpdateAlertParams) error {
	filter := bson.M{"_id": params.AlertID, "user_id": params.UserID}
	update := bson.M{"$set": bson.M{
		"min_price":         params.MinPrice,
		"max_price":         params.MaxPrice,
		"notification_type": params.NotificationType,
		"is_active":         params.IsActive,
		"updated_at":        nowUTC(),
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", params.AlertID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *alertRepository) SetLastNotified(ctx context.Context, alertID string, notifiedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"last_notified": notifiedAt,
		"updated_at":    notifiedAt,
	}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": alertID}, update)
	if err != nil {
		return fmt.Errorf("failed to set last notified for alert %s: %w", alertID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *alertRepository) Delete(ctx context.Context, alertID, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": alertID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", alertID, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
