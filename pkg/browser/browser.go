// Package browser runs a Chrome tab through chromedp and exposes the handful
// of operations the login and scraping code need.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

type Options struct {
	Headless bool
	// ExecPath overrides Chrome auto-detection.
	ExecPath        string
	UserAgent       string
	PageLoadTimeout time.Duration
}

// Session is a single browser tab. Close must be called to stop Chrome.
type Session struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	pageLoad    time.Duration
	logger      *log.Logger
	closeOnce   sync.Once
}

// Launch starts Chrome and opens a blank tab.
func Launch(ctx context.Context, opts Options, logger *log.Logger) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	// The first Run starts the browser.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Debug("browser started", "headless", opts.Headless)

	return &Session{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		pageLoad:    opts.PageLoadTimeout,
		logger:      logger,
	}, nil
}

// Close shuts the tab and the browser. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("browser closed")
	})
}

// defaultCallTimeout bounds tab calls when no page load timeout is set.
const defaultCallTimeout = 30 * time.Second

// callTimeout is the bound for tab calls without an explicit timeout.
func (s *Session) callTimeout() time.Duration {
	if s.pageLoad > 0 {
		return s.pageLoad
	}
	return defaultCallTimeout
}

// run executes actions on the tab, bounded by ctx and by timeout when it is
// positive.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.callTimeout(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.callTimeout(), chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.callTimeout()
	}
	return s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, s.callTimeout(), chromedp.Evaluate(script, out))
}

const clickScript = `(function(sel) {
	const el = Array.from(document.querySelectorAll(sel))
		.find(e => e.offsetParent !== null && !e.disabled);
	if (!el) return false;
	el.scrollIntoView({block: "center"});
	el.click();
	return true;
})(%s)`

// Click clicks the first visible, enabled element matching selector.
func (s *Session) Click(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	if err := s.Evaluate(ctx, fmt.Sprintf(clickScript, jsString(selector)), &clicked); err != nil {
		return false, fmt.Errorf("click %s: %w", selector, err)
	}
	return clicked, nil
}

// Fill replaces the value of the input matching selector.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	err := s.run(ctx, s.callTimeout(),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.callTimeout(), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Cookies returns every cookie the browser holds, not only those of the
// current page.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.callTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return convertCookies(cookies), nil
}

func convertCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
