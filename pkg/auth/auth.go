// Package auth signs a browser session into the business portal, either with
// stored credentials or by waiting for the user to finish an SSO login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/zalando/go-keyring"
)

// KeyringService is the keyring entry passwords are stored under, keyed by
// email.
const KeyringService = "amazon-business-invoice-fetcher"

var ErrAuthentication = errors.New("authentication failed")

// Page is the part of a browser session the login flows drive.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	HTML(ctx context.Context) (string, error)
}

type Options struct {
	BusinessURL string
	Email       string
	// Password takes precedence over the keyring when set.
	Password string
	UseSSO   bool
	// LoginTimeout bounds each wait for a login form field.
	LoginTimeout time.Duration
	// SSOTimeout bounds the whole interactive login.
	SSOTimeout time.Duration
	// ElementTimeout bounds each probe of an optional element.
	ElementTimeout time.Duration
	SettleDelay    time.Duration
}

var (
	signInLinks = []string{
		"a[data-nav-role='signin']",
		"a[href*='signin']",
		"#nav-link-accountList",
		".nav-signin-text",
		"[data-testid='sign-in-button']",
	}

	loginIndicators = []string{
		"#nav-link-accountList",
		"[data-nav-role='signin']",
		".nav-user-name",
		"#business-nav",
	}

	ssoIndicators = append(loginIndicators[:len(loginIndicators):len(loginIndicators)],
		"[data-testid='business-header']",
		".ab-user-menu",
	)

	errorBoxes = []string{
		"#auth-error-message-box",
		".auth-error-message",
		"#auth-warning-message-box",
	}
)

const (
	emailField     = "#ap_email"
	continueButton = "#continue"
	passwordField  = "#ap_password"
	submitButton   = "#signInSubmit"
)

type Authenticator struct {
	page   Page
	opts   Options
	logger *log.Logger
	poll   time.Duration
}

func New(page Page, opts Options, logger *log.Logger) *Authenticator {
	return &Authenticator{
		page:   page,
		opts:   opts,
		logger: logger,
		poll:   2 * time.Second,
	}
}

// Authenticate runs the SSO flow when configured or requested, the
// credential flow otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, interactive bool) error {
	if a.opts.UseSSO || interactive {
		return a.LoginSSO(ctx)
	}
	return a.Login(ctx)
}

// Credentials returns the password for email: the configured one when set,
// the keyring entry otherwise.
func Credentials(email, configured string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: email not configured", ErrAuthentication)
	}
	if configured != "" {
		return configured, nil
	}

	password, err := keyring.Get(KeyringService, email)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: read keyring: %w", ErrAuthentication, err)
	}
	if password == "" {
		return "", fmt.Errorf("%w: password not found for %s, set AMAZON_BUSINESS_PASSWORD or run setup", ErrAuthentication, email)
	}
	return password, nil
}

// StorePassword saves password in the system keyring.
func StorePassword(email, password string) error {
	if err := keyring.Set(KeyringService, email, password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// Login signs in with email and password.
func (a *Authenticator) Login(ctx context.Context) error {
	password, err := Credentials(a.opts.Email, a.opts.Password)
	if err != nil {
		return err
	}

	if err := a.page.Navigate(ctx, a.opts.BusinessURL); err != nil {
		return fmt.Errorf("%w: open portal: %w", ErrAuthentication, err)
	}

	clicked, err := a.clickFirst(ctx, signInLinks)
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: could not find sign-in button", ErrAuthentication)
	}

	steps := []func() error{
		func() error { return a.fill(ctx, emailField, a.opts.Email) },
		func() error { return a.press(ctx, continueButton) },
		func() error { return a.fill(ctx, passwordField, password) },
		func() error { return a.press(ctx, submitButton) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	ok, err := a.loggedIn(ctx, loginIndicators, a.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return a.loginFailure(ctx)
	}

	a.logger.Info("logged in", "email", a.opts.Email)
	return sleep(ctx, a.opts.SettleDelay)
}

// LoginSSO opens the portal and waits for the user to complete the login in
// the visible browser window.
func (a *Authenticator) LoginSSO(ctx context.Context) error {
	if err := a.page.Navigate(ctx, a.opts.BusinessURL); err != nil {
		return fmt.Errorf("%w: open portal: %w", ErrAuthentication, err)
	}
	a.logger.Info("complete the SSO login in the browser window", "timeout", a.opts.SSOTimeout)

	ssoCtx, cancel := context.WithTimeout(ctx, a.opts.SSOTimeout)
	defer cancel()

	for {
		ok, err := a.loggedIn(ssoCtx, ssoIndicators, a.poll)
		if ok {
			a.logger.Info("SSO login complete")
			return sleep(ctx, a.opts.SettleDelay)
		}
		if err == nil {
			err = sleep(ssoCtx, a.poll)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: SSO login not completed within %s", ErrAuthentication, a.opts.SSOTimeout)
		}
	}
}

// loggedIn reports whether one of selectors is present on a page that is not
// a sign-in page. The error is only set when ctx ends.
func (a *Authenticator) loggedIn(ctx context.Context, selectors []string, timeout time.Duration) (bool, error) {
	for _, selector := range selectors {
		if err := a.page.WaitFor(ctx, selector, timeout); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}
		loc, err := a.page.Location(ctx)
		if err != nil {
			continue
		}
		if !onSignInPage(loc) {
			a.logger.Debug("login confirmed", "selector", selector, "url", loc)
			return true, nil
		}
	}
	return false, nil
}

func (a *Authenticator) loginFailure(ctx context.Context) error {
	if msg := a.errorMessage(ctx); msg != "" {
		return fmt.Errorf("%w: %s", ErrAuthentication, msg)
	}
	if loc, err := a.page.Location(ctx); err == nil && onSignInPage(loc) {
		return fmt.Errorf("%w: still on sign-in page", ErrAuthentication)
	}
	return fmt.Errorf("%w: could not verify login", ErrAuthentication)
}

// errorMessage returns the text of the first displayed error box.
func (a *Authenticator) errorMessage(ctx context.Context) string {
	html, err := a.page.HTML(ctx)
	if err != nil {
		a.logger.Debug("failed to read login page", "error", err)
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, selector := range errorBoxes {
		el := doc.Find(selector).First()
		if el.Length() == 0 || hidden(el) {
			continue
		}
		if text := strings.Join(strings.Fields(el.Text()), " "); text != "" {
			return text
		}
	}
	return ""
}

func hidden(el *goquery.Selection) bool {
	if el.HasClass("aok-hidden") {
		return true
	}
	style := strings.ReplaceAll(el.AttrOr("style", ""), " ", "")
	return strings.Contains(style, "display:none")
}

func (a *Authenticator) clickFirst(ctx context.Context, selectors []string) (bool, error) {
	for _, selector := range selectors {
		if err := a.page.WaitFor(ctx, selector, a.opts.ElementTimeout); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}
		clicked, err := a.page.Click(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			a.logger.Debug("click failed", "selector", selector, "error", err)
			continue
		}
		if clicked {
			return true, nil
		}
	}
	return false, nil
}

func (a *Authenticator) fill(ctx context.Context, selector, value string) error {
	if err := a.page.WaitFor(ctx, selector, a.opts.LoginTimeout); err != nil {
		return fmt.Errorf("%w: %s not found: %w", ErrAuthentication, selector, err)
	}
	if err := a.page.Fill(ctx, selector, value); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return nil
}

func (a *Authenticator) press(ctx context.Context, selector string) error {
	clicked, err := a.page.Click(ctx, selector)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if !clicked {
		return fmt.Errorf("%w: %s not found", ErrAuthentication, selector)
	}
	return sleep(ctx, a.opts.SettleDelay)
}

func onSignInPage(loc string) bool {
	return strings.Contains(strings.ToLower(loc), "signin")
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
