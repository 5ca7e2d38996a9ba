package scraper

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

const defaultHTTPTimeout = 15 * time.Second

// Several of the target sites return 403 or an empty shell to anything
// that does not look like a real browser, so the header set is fixed.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "max-age=0",
}

// Result is the single canonical shape every extraction produces.
// Price is always positive; the descriptive fields may be empty.
type Result struct {
	Price    float64
	Name     string
	Brand    string
	Category string
}

type Extractor interface {
	Extract(ctx context.Context, url string, website entity.Website) (*Result, error)
}

type httpExtractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) Extractor {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &httpExtractor{
		client: &http.Client{Timeout: timeout},
	}
}

func (e *httpExtractor) Extract(ctx context.Context, url string, website entity.Website) (*Result, error) {
	rules, err := RulesFor(website)
	if err != nil {
		return nil, err
	}

	doc, err := e.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Name:     firstMatch(doc, rules, PurposeName),
		Brand:    firstMatch(doc, rules, PurposeBrand),
		Category: firstMatch(doc, rules, PurposeCategory),
	}

	raw := firstPriceText(doc, rules)
	if raw == "" {
		return nil, fmt.Errorf("%w on %s", ErrNoPriceMatch, url)
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, &PriceFormatError{Raw: raw}
	}

	result.Price = price
	return result, nil
}

func (e *httpExtractor) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("parsing response body: %w", err)}
	}
	return doc, nil
}

// firstPriceText walks the price fallback chain and returns the cleaned
// text of the first selector that yields anything, or "".
func firstPriceText(doc *goquery.Document, rules []Rule) string {
	for _, rule := range rules {
		if rule.Purpose != PurposePrice {
			continue
		}
		text := cleanPrice(doc.Find(rule.Selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func firstMatch(doc *goquery.Document, rules []Rule, purpose Purpose) string {
	for _, rule := range rules {
		if rule.Purpose != purpose {
			continue
		}
		if text := strings.TrimSpace(doc.Find(rule.Selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// cleanPrice strips everything except digits and the decimal point,
// turning strings like "₹1,299.00" into "1299.00".
func cleanPrice(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
