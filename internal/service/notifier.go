package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

// Mail rendering for the notification sink. Bodies mirror what the
// product emails have always looked like: price, band, link, best deals.

func renderAlertEmail(listing *entity.Listing, alert *entity.PriceAlert, newPrice float64, deals []Deal) (subject, bodyHTML, bodyText string) {
	subject = fmt.Sprintf("Price Alert for %s", listing.Name)

	var b strings.Builder
	b.WriteString("<h2>Price Alert Notification</h2>")
	fmt.Fprintf(&b, "<p>The price for %s has changed to ₹%.2f</p>", html.EscapeString(listing.Name), newPrice)
	b.WriteString("<p>Your alert settings:</p><ul>")
	fmt.Fprintf(&b, "<li>Min Price: ₹%.2f</li>", alert.MinPrice)
	fmt.Fprintf(&b, "<li>Max Price: ₹%.2f</li>", alert.MaxPrice)
	b.WriteString("</ul>")
	fmt.Fprintf(&b, `<p>View the product: <a href="%s">%s</a></p>`, listing.URL, html.EscapeString(listing.URL))

	if len(deals) > 0 {
		b.WriteString("<h3>Best Deals Available:</h3><ul>")
		for _, deal := range deals {
			fmt.Fprintf(&b, `<li>%s: ₹%.2f - <a href="%s">View Deal</a></li>`, deal.Website, deal.Price, deal.URL)
		}
		b.WriteString("</ul>")
	}

	bodyText = fmt.Sprintf("The price for %s has changed to %.2f (your band: %.2f-%.2f). %s",
		listing.Name, newPrice, alert.MinPrice, alert.MaxPrice, listing.URL)

	return subject, b.String(), bodyText
}

func renderListingCreatedEmail(listing *entity.Listing) (subject, bodyHTML, bodyText string) {
	subject = fmt.Sprintf("Now tracking: %s", listing.Name)

	var b strings.Builder
	b.WriteString("<h2>Tracking started</h2>")
	fmt.Fprintf(&b, "<p>We are now tracking %s on %s.</p>", html.EscapeString(listing.Name), listing.Website)
	fmt.Fprintf(&b, "<p>Current price: ₹%.2f</p>", listing.CurrentPrice)
	fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, listing.URL, html.EscapeString(listing.URL))

	bodyText = fmt.Sprintf("Now tracking %s on %s. Current price: %.2f. %s",
		listing.Name, listing.Website, listing.CurrentPrice, listing.URL)

	return subject, b.String(), bodyText
}

func renderTestEmail() (subject, bodyHTML, bodyText string) {
	subject = "Price Tracker: Email Settings Test"
	bodyHTML = "<h2>Email Settings Test</h2>" +
		"<p>This is a test email to confirm your email settings are working correctly.</p>" +
		"<p>You will receive price alerts at this email address.</p>"
	bodyText = "This is a test email to confirm your email settings are working correctly."
	return subject, bodyHTML, bodyText
}
