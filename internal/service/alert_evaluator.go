package service

import (
	"sort"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

const defaultBestDealsLimit = 3

// Deal is one sibling listing's freshly extracted price.
type Deal struct {
	Website entity.Website
	Price   float64
	URL     string
}

type Evaluation struct {
	Fire      bool
	BestDeals []Deal
}

// EvaluateAlert decides whether an alert fires for a fresh price and
// ranks the sibling deals. BestDeals is computed regardless of the fire
// decision so callers can reuse the ranking; it is sorted ascending by
// price and truncated to limit entries.
func EvaluateAlert(alert *entity.PriceAlert, newPrice float64, siblings []Deal, limit int) Evaluation {
	if limit <= 0 {
		limit = defaultBestDealsLimit
	}

	deals := make([]Deal, len(siblings))
	copy(deals, siblings)
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Price < deals[j].Price
	})
	if len(deals) > limit {
		deals = deals[:limit]
	}

	return Evaluation{
		Fire:      alert.IsActive && alert.InBand(newPrice),
		BestDeals: deals,
	}
}
