package scraper

import (
	"errors"
	"testing"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesFor_SupportedWebsites(t *testing.T) {
	for _, website := range []entity.Website{
		entity.WebsiteAmazon,
		entity.WebsiteFlipkart,
		entity.WebsiteReliance,
		entity.WebsiteCroma,
		entity.WebsiteBazaar,
		entity.WebsiteMeesho,
	} {
		t.Run(string(website), func(t *testing.T) {
			rules, err := RulesFor(website)
			require.NoError(t, err)
			require.NotEmpty(t, rules)

			var priceRules int
			for _, rule := range rules {
				if rule.Purpose == PurposePrice {
					priceRules++
				}
			}
			assert.Greater(t, priceRules, 0, "every supported site needs at least one price selector")
		})
	}
}

func TestRulesFor_PreservesFallbackOrder(t *testing.T) {
	rules, err := RulesFor(entity.WebsiteAmazon)
	require.NoError(t, err)

	var priceSelectors []string
	for _, rule := range rules {
		if rule.Purpose == PurposePrice {
			priceSelectors = append(priceSelectors, rule.Selector)
		}
	}

	assert.Equal(t, []string{
		"#priceblock_ourprice",
		".a-price-whole",
		"#price_inside_buybox",
		"#newBuyBoxPrice",
	}, priceSelectors)
}

func TestRulesFor_UnsupportedWebsite(t *testing.T) {
	_, err := RulesFor(entity.Website("ebay"))
	assert.True(t, errors.Is(err, ErrUnsupportedWebsite))
}

func TestRulesFor_OtherHasNoRules(t *testing.T) {
	_, err := RulesFor(entity.WebsiteOther)
	assert.True(t, errors.Is(err, ErrUnsupportedWebsite))
}
