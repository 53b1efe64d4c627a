package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Matcher looks for a value inside an element. It is a pure function of the
// element, so chains can be tested against static HTML.
type Matcher[T any] func(sel *goquery.Selection) (T, bool)

// Chain is an ordered list of matchers; the first one that matches wins.
type Chain[T any] []Matcher[T]

func (c Chain[T]) First(sel *goquery.Selection) (T, bool) {
	for _, m := range c {
		if v, ok := m(sel); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// textPattern matches when the first element under selector has text matching
// re, yielding the first capture group.
func textPattern(selector string, re *regexp.Regexp) Matcher[string] {
	return func(sel *goquery.Selection) (string, bool) {
		el := sel.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		m := re.FindStringSubmatch(strings.TrimSpace(el.Text()))
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	}
}

var dateNoise = regexp.MustCompile(`[^\w\s,/-]`)

var leadingWeekday = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)[a-z]*,?\s+`)

// parseDate strips punctuation other than commas, slashes and hyphens and a
// leading weekday, then hands the rest to a general date parser. Day-first
// numeric dates are accepted when month-first cannot be valid.
func parseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(dateNoise.ReplaceAllString(text, ""))
	text = leadingWeekday.ReplaceAllString(text, "")
	if text == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(text, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// dateText matches when the first element under selector holds a parsable date.
func dateText(selector string) Matcher[time.Time] {
	return func(sel *goquery.Selection) (time.Time, bool) {
		el := sel.Find(selector).First()
		if el.Length() == 0 {
			return time.Time{}, false
		}
		return parseDate(el.Text())
	}
}

// linkTarget matches as soon as an element exists under selector and yields
// its href, which may be empty.
func linkTarget(selector string) Matcher[string] {
	return func(sel *goquery.Selection) (string, bool) {
		el := sel.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(el.AttrOr("href", "")), true
	}
}

// attrValue matches when the first element under selector has a non-empty
// value for one of attrs, tried in order.
func attrValue(selector string, attrs ...string) Matcher[string] {
	return func(sel *goquery.Selection) (string, bool) {
		el := sel.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		for _, a := range attrs {
			if v := strings.TrimSpace(el.AttrOr(a, "")); v != "" {
				return v, true
			}
		}
		return "", false
	}
}

var (
	orderNumberPattern = regexp.MustCompile(`#?\s*(\d{3}-\d{7}-\d{7})`)
	totalPattern       = regexp.MustCompile(`\$?(\d+\.?\d*)`)
)

var (
	// Elements whose presence confirms the orders page rendered.
	orderPageIndicators = []string{
		"[data-testid='order-card']",
		".order-card",
		"#ordersContainer",
		".a-section.a-spacing-none.order-info",
		"[data-test-id='order-tile']",
	}

	// In-page links leading to the order history.
	orderNavLinks = []string{
		"a[href*='orders']",
		"a[href*='order-history']",
		"#nav-orders",
		"[data-nav-ref='nav_orders']",
	}

	loadMoreButtons = []string{
		"button[data-testid='load-more']",
		".load-more-button",
		"button[aria-label*='more']",
	}

	orderCards = []string{
		"[data-testid='order-card']",
		".order-card",
		".a-section.a-spacing-none.order-info",
		"[data-test-id='order-tile']",
	}

	pdfReferences = Chain[string]{
		attrValue("a[href$='.pdf']", "src", "href"),
		attrValue("iframe[src*='pdf']", "src", "href"),
		attrValue("embed[src*='pdf']", "src", "href"),
		attrValue("[data-testid='download-pdf']", "src", "href"),
	}
)

var (
	orderNumberChain = Chain[string]{
		textPattern("[data-testid='order-number']", orderNumberPattern),
		textPattern(".order-number", orderNumberPattern),
		textPattern(".order-info-item:contains('Order')", orderNumberPattern),
		textPattern("[class*='order-number']", orderNumberPattern),
	}

	orderDateChain = Chain[time.Time]{
		dateText("[data-testid='order-date']"),
		dateText(".order-date"),
		dateText("[class*='order-date']"),
		dateText(".date-info"),
	}

	orderTotalChain = Chain[string]{
		textPattern("[data-testid='order-total']", totalPattern),
		textPattern(".order-total", totalPattern),
		textPattern("[class*='total']", totalPattern),
		textPattern(".price", totalPattern),
	}

	invoiceLinkChain = Chain[string]{
		linkTarget("a[href*='invoice']"),
		linkTarget("a[href*='receipt']"),
		linkTarget("a[data-testid*='invoice']"),
		linkTarget(".invoice-link"),
	}
)
