package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Website string

const (
	WebsiteAmazon   Website = "amazon"
	WebsiteFlipkart Website = "flipkart"
	WebsiteReliance Website = "reliance"
	WebsiteCroma    Website = "croma"
	WebsiteBazaar   Website = "bazaar"
	WebsiteMeesho   Website = "meesho"
	WebsiteOther    Website = "other"
)

var supportedWebsites = map[Website]struct{}{
	WebsiteAmazon:   {},
	WebsiteFlipkart: {},
	WebsiteReliance: {},
	WebsiteCroma:    {},
	WebsiteBazaar:   {},
	WebsiteMeesho:   {},
	WebsiteOther:    {},
}

func ParseWebsite(s string) (Website, error) {
	w := Website(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := supportedWebsites[w]; !ok {
		return "", fmt.Errorf("unknown website %q", s)
	}
	return w, nil
}

type PricePoint struct {
	Price     float64   `bson:"price"`
	CheckedAt time.Time `bson:"checked_at"`
}

type Listing struct {
	ID                string       `bson:"_id,omitempty"`
	UserID            string       `bson:"user_id"`
	ProductIdentifier string       `bson:"product_identifier"`
	Name              string       `bson:"name"`
	Brand             string       `bson:"brand,omitempty"`
	Category          string       `bson:"category,omitempty"`
	URL               string       `bson:"url"`
	Website           Website      `bson:"website"`
	ImageURL          string       `bson:"image_url,omitempty"`
	AffiliateURL      string       `bson:"affiliate_url,omitempty"`
	CurrentPrice      float64      `bson:"current_price"`
	HistoricalPrices  []PricePoint `bson:"historical_prices"`
	LowestPrice       float64      `bson:"lowest_price"`
	HighestPrice      float64      `bson:"highest_price"`
	LastChecked       time.Time    `bson:"last_checked"`
	CreatedAt         time.Time    `bson:"created_at"`
	UpdatedAt         time.Time    `bson:"updated_at"`
}

func NewListing(userID, productIdentifier, name, url string, website Website, price float64, now time.Time) (*Listing, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	if productIdentifier == "" {
		return nil, errors.New("product identifier cannot be empty")
	}
	if url == "" {
		return nil, errors.New("url cannot be empty")
	}
	if _, ok := supportedWebsites[website]; !ok {
		return nil, fmt.Errorf("unknown website %q", website)
	}
	if price <= 0 {
		return nil, errors.New("price must be positive")
	}
	return &Listing{
		UserID:            userID,
		ProductIdentifier: productIdentifier,
		Name:              name,
		URL:               url,
		Website:           website,
		CurrentPrice:      price,
		HistoricalPrices:  []PricePoint{{Price: price, CheckedAt: now}},
		LowestPrice:       price,
		HighestPrice:      price,
		LastChecked:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
