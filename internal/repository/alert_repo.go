package repository

import (
	"context"
	"time"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

type UpdateAlertParams struct {
	AlertID          string
	UserID           string
	MinPrice         float64
	MaxPrice         float64
	NotificationType entity.NotificationType
	IsActive         bool
}

type AlertRepository interface {
	Create(ctx context.Context, alert *entity.PriceAlert) (string, error)
	GetByID(ctx context.Context, alertID string) (*entity.PriceAlert, error)
	ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error)
	ListActiveByListing(ctx context.Context, listingID string) ([]entity.PriceAlert, error)
	Update(ctx context.Context, params UpdateAlertParams) error
	SetLastNotified(ctx context.Context, alertID string, notifiedAt time.Time) error
	Delete(ctx context.Context, alertID, userID string) error
}
