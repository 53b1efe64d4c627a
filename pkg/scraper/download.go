package scraper

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	acceptPDF      = "application/pdf,*/*"
	acceptLanguage = "en-US,en;q=0.9"
)

// DownloadInvoice fetches the invoice behind locator with the session's
// cookies. When the response is an HTML page instead of a PDF, the page is
// opened in the session once to find the document it embeds or links to.
func (c *Client) DownloadInvoice(ctx context.Context, locator string) ([]byte, error) {
	return c.download(ctx, locator, true)
}

func (c *Client) download(ctx context.Context, locator string, allowFallback bool) ([]byte, error) {
	cookies, err := c.session.Cookies(ctx)
	if err != nil {
		return nil, &NetworkError{URL: locator, Err: fmt.Errorf("read session cookies: %w", err)}
	}
	c.fetcher.SetCookies(cookies)

	headers := map[string]string{
		"User-Agent":      c.opts.UserAgent,
		"Accept":          acceptPDF,
		"Accept-Language": acceptLanguage,
	}
	if referer, err := c.session.Location(ctx); err == nil && referer != "" {
		headers["Referer"] = referer
	}

	res, err := c.fetcher.Get(ctx, locator, headers)
	if err != nil {
		return nil, &NetworkError{URL: locator, Err: err}
	}
	if !res.OK() {
		return nil, &NetworkError{URL: locator, StatusCode: res.StatusCode}
	}

	if isPDFContentType(res.ContentType()) || hasPDFExtension(locator) {
		c.logger.Debug("invoice downloaded", "url", locator, "bytes", len(res.Body))
		return res.Body, nil
	}

	if !allowFallback {
		return nil, &NetworkError{URL: locator, Err: errNotPDF}
	}

	c.logger.Debug("response is not a pdf, opening invoice page", "url", locator, "content_type", res.ContentType())
	return c.downloadFromPage(ctx, locator)
}

// downloadFromPage opens locator in the session and downloads the first PDF
// reference it finds there. The second download does not fall back again.
func (c *Client) downloadFromPage(ctx context.Context, locator string) ([]byte, error) {
	if err := c.session.Navigate(ctx, locator); err != nil {
		return nil, &NetworkError{URL: locator, Err: fmt.Errorf("open invoice page: %w", err)}
	}
	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return nil, err
	}

	doc, base, err := c.snapshot(ctx)
	if err != nil {
		return nil, &NetworkError{URL: locator, Err: err}
	}

	ref, ok := pdfReferences.First(doc.Selection)
	if !ok {
		return nil, &NetworkError{URL: locator, Err: ErrPDFLinkNotFound}
	}

	target := resolve(base, ref)
	c.logger.Debug("pdf reference found", "page", locator, "pdf", target)
	return c.download(ctx, target, false)
}

func isPDFContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf")
}

// hasPDFExtension looks at the path only, so query strings do not hide the
// extension.
func hasPDFExtension(locator string) bool {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".pdf")
}
