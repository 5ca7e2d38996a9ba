package scraper

import (
	"fmt"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

type Purpose string

const (
	PurposePrice    Purpose = "price"
	PurposeName     Purpose = "name"
	PurposeBrand    Purpose = "brand"
	PurposeCategory Purpose = "category"
)

// Rule locates one value on a product page. Rules for the same purpose
// form a fallback chain: earlier selectors reflect the currently observed
// markup, later ones older revisions the sites still serve sometimes.
type Rule struct {
	Purpose  Purpose
	Selector string
}

// Retail sites rotate their markup without notice. Adding or reordering
// selectors here is the whole maintenance story; nothing else changes.
var selectorTable = map[entity.Website][]Rule{
	entity.WebsiteAmazon: {
		{PurposePrice, "#priceblock_ourprice"},
		{PurposePrice, ".a-price-whole"},
		{PurposePrice, "#price_inside_buybox"},
		{PurposePrice, "#newBuyBoxPrice"},
		{PurposeName, "#productTitle"},
		{PurposeBrand, "#bylineInfo"},
		{PurposeCategory, "#wayfinding-breadcrumbs_feature_div"},
	},
	entity.WebsiteFlipkart: {
		{PurposePrice, "._30jeq3._16Jk6d"},
		{PurposePrice, ".dyC4hf"},
		{PurposePrice, "._30jeq3"},
		{PurposePrice, ".CEmiEU"},
		{PurposePrice, "._2YxCDZ"},
		{PurposeName, ".B_NuCI"},
		{PurposeBrand, ".G6XhRU"},
		{PurposeCategory, "._3Ll34p"},
	},
	entity.WebsiteReliance: {
		{PurposePrice, ".pdp__offerPrice"},
		{PurposeName, ".pdp__title"},
		{PurposeCategory, ".pdp__breadcrumb"},
	},
	entity.WebsiteCroma: {
		{PurposePrice, ".amount"},
		{PurposePrice, ".pd-price"},
		{PurposePrice, ".price"},
		{PurposeName, ".pd-title"},
		{PurposeBrand, ".pd-brand"},
		{PurposeCategory, ".breadcrumb"},
	},
	entity.WebsiteBazaar: {
		{PurposePrice, ".discount-price"},
		{PurposeName, ".product-title"},
	},
	entity.WebsiteMeesho: {
		{PurposePrice, ".ProductDetails__DiscountedPriceP-sc-1p3qgqh-3"},
		{PurposePrice, ".actual-price"},
		{PurposeName, ".ProductDetails__ProductName-sc-1p3qgqh-0"},
		{PurposeBrand, ".ProductDetails__BrandName-sc-1p3qgqh-1"},
		{PurposeCategory, ".Breadcrumbs__BreadcrumbsWrapper-sc-1p3qgqh-2"},
	},
}

// RulesFor returns the ordered extraction rules for a website.
// Listings tagged "other" are tracked manually and have no rules, so they
// are unsupported for extraction like any unknown tag.
func RulesFor(website entity.Website) ([]Rule, error) {
	rules, ok := selectorTable[website]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedWebsite, website)
	}
	return rules, nil
}
