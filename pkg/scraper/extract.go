package scraper

import (
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yurifrl/invoicefetch/pkg/models"
)

// ExtractOrder reads one order element. Every field is looked up on its own;
// the order is only returned when both the number and the date were found.
func ExtractOrder(sel *goquery.Selection, base *url.URL) (models.Order, bool) {
	var order models.Order

	if number, ok := orderNumberChain.First(sel); ok {
		order.Number = number
	}
	if date, ok := orderDateChain.First(sel); ok {
		order.Date = date
	}
	if total, ok := orderTotalChain.First(sel); ok {
		order.Total = total
	}
	if href, ok := invoiceLinkChain.First(sel); ok {
		order.InvoiceURL = resolve(base, href)
	}

	return order, order.Valid()
}

// FilterRecent keeps valid orders dated on or after cutoff, preserving order.
func FilterRecent(orders []models.Order, cutoff time.Time) []models.Order {
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if !o.Valid() || o.Date.Before(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// resolve makes ref absolute against base. Unparsable references are
// returned untouched.
func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) extractAll(cards *goquery.Selection, base *url.URL) []models.Order {
	var orders []models.Order
	cards.Each(func(i int, sel *goquery.Selection) {
		order, err := c.extractOne(sel, base)
		if err != nil {
			c.logger.Warn("error extracting order data", "index", i, "error", err)
			return
		}
		if order == nil {
			c.logger.Debug("order skipped, missing number or date", "index", i)
			return
		}
		orders = append(orders, *order)
	})
	return orders
}

// extractOne isolates a single element so a broken entry cannot abort the
// rest of the page.
func (c *Client) extractOne(sel *goquery.Selection, base *url.URL) (order *models.Order, err error) {
	defer func() {
		if r := recover(); r != nil {
			order, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	o, ok := ExtractOrder(sel, base)
	if !ok {
		return nil, nil
	}
	return &o, nil
}
