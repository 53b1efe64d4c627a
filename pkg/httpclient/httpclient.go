// Package httpclient is the plain HTTP side of a scraping session: a resty
// client whose cookie jar is refreshed from the browser before each request.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

// Response is what the scraper needs from an HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response content type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	Timeout          time.Duration
	UserAgent        string
	CloudflareBypass bool
}

// Client wraps resty with a replaceable cookie jar.
type Client struct {
	http   *resty.Client
	jar    http.CookieJar
	logger *log.Logger
}

func New(opts Options, logger *log.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &Client{http: client, jar: jar, logger: logger}, nil
}

// SetCookies stores browser cookies in the jar. Each cookie is filed under
// its own domain so requests to sibling hosts carry it as the browser would.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	byOrigin := map[string][]*http.Cookie{}
	for _, ck := range cookies {
		if ck == nil || ck.Domain == "" {
			continue
		}
		host := ck.Domain
		if host[0] == '.' {
			host = host[1:]
		}
		path := ck.Path
		if path == "" {
			path = "/"
		}
		origin := (&url.URL{Scheme: "https", Host: host, Path: path}).String()
		byOrigin[origin] = append(byOrigin[origin], ck)
	}
	for origin, list := range byOrigin {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		c.jar.SetCookies(u, list)
	}
	c.logger.Debug("synced cookies", "count", len(cookies))
}

// Get fetches url with the given extra headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	c.logger.Debug("http get", "url", url, "status", res.StatusCode(), "content_type", res.Header().Get("Content-Type"))
	return &Response{
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
	}, nil
}
