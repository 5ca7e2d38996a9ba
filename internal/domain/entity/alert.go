package entity

import (
	"errors"
	"time"
)

type NotificationType string

const (
	NotifyEmail NotificationType = "email"
	NotifySMS   NotificationType = "sms"
	NotifyBoth  NotificationType = "both"
)

type PriceAlert struct {
	ID               string           `bson:"_id,omitempty"`
	UserID           string           `bson:"user_id"`
	ListingID        string           `bson:"listing_id"`
	MinPrice         float64          `bson:"min_price"`
	MaxPrice         float64          `bson:"max_price"`
	NotificationType NotificationType `bson:"notification_type"`
	IsActive         bool             `bson:"is_active"`
	LastNotified     *time.Time       `bson:"last_notified,omitempty"`
	CreatedAt        time.Time        `bson:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at"`
}

func NewPriceAlert(userID, listingID string, minPrice, maxPrice float64, notificationType NotificationType, now time.Time) (*PriceAlert, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	if listingID == "" {
		return nil, errors.New("listing ID cannot be empty")
	}
	if minPrice < 0 {
		return nil, errors.New("min price cannot be negative")
	}
	if maxPrice < minPrice {
		return nil, errors.New("max price cannot be lower than min price")
	}
	if notificationType == "" {
		notificationType = NotifyEmail
	}
	return &PriceAlert{
		UserID:           userID,
		ListingID:        listingID,
		MinPrice:         minPrice,
		MaxPrice:         maxPrice,
		NotificationType: notificationType,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// InBand reports whether price falls inside the alert's [min, max] band.
func (a *PriceAlert) InBand(price float64) bool {
	return price >= a.MinPrice && price <= a.MaxPrice
}
