package repository

import (
	"context"
	"time"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

// PriceUpdateParams carries one reconciliation result for a single listing.
// When Extracted is false only the group extrema and LastChecked are written;
// CurrentPrice stays as it was and no history entry is appended.
type PriceUpdateParams struct {
	ListingID    string
	Extracted    bool
	CurrentPrice float64
	LowestPrice  float64
	HighestPrice float64
	CheckedAt    time.Time
}

type UpdateListingParams struct {
	ListingID string
	UserID    string
	Name      string
	URL       string
	Website   entity.Website
}

type ListingRepository interface {
	Create(ctx context.Context, listing *entity.Listing) (string, error)
	GetByID(ctx context.Context, listingID string) (*entity.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Listing, error)
	ListAll(ctx context.Context) ([]entity.Listing, error)
	ListLowestPriced(ctx context.Context, limit int64) ([]entity.Listing, error)
	UpdateDetails(ctx context.Context, params UpdateListingParams) error
	UpdatePriceData(ctx context.Context, params PriceUpdateParams) error
	Delete(ctx context.Context, listingID, userID string) error
}
