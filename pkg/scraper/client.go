// Package scraper drives an authenticated browser session through the order
// history, reads every order on the page and downloads invoice documents.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/yurifrl/invoicefetch/pkg/httpclient"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

// Session is a logged-in rendering session.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	// WaitFor blocks until selector matches an element or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Evaluate(ctx context.Context, script string, out any) error
	// Click activates the first visible, enabled element matching selector
	// and reports whether one was found.
	Click(ctx context.Context, selector string) (bool, error)
	HTML(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Fetcher performs plain HTTP requests with cookies copied from the session.
type Fetcher interface {
	SetCookies(cookies []*http.Cookie)
	Get(ctx context.Context, url string, headers map[string]string) (*httpclient.Response, error)
}

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultMaxScrolls = 50

	scrollHeightScript   = `document.body.scrollHeight`
	scrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight)`
)

type Options struct {
	// BaseURL is the portal root, e.g. https://business.amazon.com.
	BaseURL string
	// ElementTimeout bounds each wait for a page indicator.
	ElementTimeout time.Duration
	// SettleDelay is slept after navigations and scrolls.
	SettleDelay time.Duration
	// LoadMoreDelay is slept after activating a "load more" control.
	LoadMoreDelay time.Duration
	MaxScrolls    int
	UserAgent     string
}

// Client owns a session and the fetcher sharing its cookies. It is not safe
// for concurrent use.
type Client struct {
	session Session
	fetcher Fetcher
	logger  *log.Logger
	opts    Options
	now     func() time.Time
}

func New(session Session, fetcher Fetcher, logger *log.Logger, opts Options) *Client {
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = defaultMaxScrolls
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{
		session: session,
		fetcher: fetcher,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

func (c *Client) orderURLs() []string {
	base := strings.TrimRight(c.opts.BaseURL, "/")
	return []string{
		base + "/orders",
		base + "/orders/history",
		base + "/your-account/orders",
	}
}

// NavigateToOrders opens the order history, trying the known URLs first and
// the page's own navigation links second.
func (c *Client) NavigateToOrders(ctx context.Context) error {
	for _, u := range c.orderURLs() {
		if err := c.session.Navigate(ctx, u); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("failed to open orders url", "url", u, "error", err)
			continue
		}
		if err := sleep(ctx, c.opts.SettleDelay); err != nil {
			return err
		}
		for _, selector := range orderPageIndicators {
			err := c.session.WaitFor(ctx, selector, c.opts.ElementTimeout)
			if err == nil {
				c.logger.Debug("orders page found", "url", u, "selector", selector)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	for _, selector := range orderNavLinks {
		clicked, err := c.session.Click(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("failed to click orders link", "selector", selector, "error", err)
			continue
		}
		if clicked {
			c.logger.Debug("followed orders link", "selector", selector)
			return sleep(ctx, c.opts.SettleDelay)
		}
	}

	return ErrOrdersPageNotFound
}

// RecentOrders returns the orders placed within the last days days, in the
// order the page lists them.
func (c *Client) RecentOrders(ctx context.Context, days int) ([]models.Order, error) {
	if err := c.NavigateToOrders(ctx); err != nil {
		return nil, err
	}
	if err := c.loadAll(ctx); err != nil {
		return nil, err
	}

	doc, base, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	cards := findOrderCards(doc.Selection)
	if cards == nil {
		return nil, fmt.Errorf("%w: no order elements", ErrOrdersPageNotFound)
	}

	orders := c.extractAll(cards, base)
	recent := FilterRecent(orders, c.now().AddDate(0, 0, -days))
	c.logger.Info("orders scraped", "elements", cards.Length(), "parsed", len(orders), "recent", len(recent), "days", days)
	return recent, nil
}

// loadAll scrolls until the page stops growing, pressing "load more" when
// the page offers it.
func (c *Client) loadAll(ctx context.Context) error {
	last, err := c.pageHeight(ctx)
	if err != nil {
		return c.stopLoading(ctx, err)
	}

	for i := 0; i < c.opts.MaxScrolls; i++ {
		if err := c.session.Evaluate(ctx, scrollToBottomScript, nil); err != nil {
			return c.stopLoading(ctx, err)
		}
		if err := sleep(ctx, c.opts.SettleDelay); err != nil {
			return err
		}

		height, err := c.pageHeight(ctx)
		if err != nil {
			return c.stopLoading(ctx, err)
		}
		if height == last {
			c.logger.Debug("all orders loaded", "scrolls", i+1, "height", height)
			return nil
		}
		last = height

		if err := c.clickLoadMore(ctx); err != nil {
			return err
		}
	}

	c.logger.Warn("stopped scrolling, page kept growing", "scrolls", c.opts.MaxScrolls)
	return nil
}

// stopLoading ends loading early. Whatever is already on the page is still
// scraped unless the run was cancelled.
func (c *Client) stopLoading(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Warn("failed to load more orders", "error", err)
	return nil
}

func (c *Client) pageHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := c.session.Evaluate(ctx, scrollHeightScript, &height); err != nil {
		return 0, fmt.Errorf("read page height: %w", err)
	}
	return height, nil
}

func (c *Client) clickLoadMore(ctx context.Context) error {
	for _, selector := range loadMoreButtons {
		clicked, err := c.session.Click(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if clicked {
			c.logger.Debug("clicked load more", "selector", selector)
			return sleep(ctx, c.opts.LoadMoreDelay)
		}
	}
	return nil
}

// snapshot parses the current page and returns it with its address.
func (c *Client) snapshot(ctx context.Context) (*goquery.Document, *url.URL, error) {
	html, err := c.session.HTML(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}

	var base *url.URL
	if loc, err := c.session.Location(ctx); err == nil {
		base, _ = url.Parse(loc)
	}
	return doc, base, nil
}

// findOrderCards returns the matches of the first card selector that matches
// anything, or nil.
func findOrderCards(doc *goquery.Selection) *goquery.Selection {
	for _, selector := range orderCards {
		if found := doc.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
