package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/yurifrl/invoicefetch/pkg/auth"
	"github.com/yurifrl/invoicefetch/pkg/browser"
	"github.com/yurifrl/invoicefetch/pkg/config"
	"github.com/yurifrl/invoicefetch/pkg/executors"
	"github.com/yurifrl/invoicefetch/pkg/filing"
	"github.com/yurifrl/invoicefetch/pkg/httpclient"
	"github.com/yurifrl/invoicefetch/pkg/scraper"
)

var fetchOpts struct {
	team        string
	days        int
	dryRun      bool
	interactive bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch invoices from Amazon Business for a team",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOpts.team, "team", "", "Team name for organizing invoices")
	fetchCmd.Flags().IntVar(&fetchOpts.days, "days", 90, "Number of days to look back for invoices")
	fetchCmd.Flags().BoolVar(&fetchOpts.dryRun, "dry-run", false, "Show what would be downloaded without downloading")
	fetchCmd.Flags().BoolVar(&fetchOpts.interactive, "interactive", false, "Log in through SSO in a visible browser window")
	_ = fetchCmd.MarkFlagRequired("team")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if fetchOpts.days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", fetchOpts.days)
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	printInfo(out, "Starting invoice fetch for team: %s", fetchOpts.team)
	printInfo(out, "Looking back %d days", fetchOpts.days)
	printInfo(out, "Download directory: %s", cfg.TeamDir(fetchOpts.team))
	if fetchOpts.dryRun {
		printInfo(out, "DRY RUN MODE - No files will be downloaded")
	}

	store, err := filing.New(cfg.TeamDir(fetchOpts.team), logger)
	if err != nil {
		return err
	}
	defer store.Cleanup()

	useSSO := cfg.Amazon.UseSSO || fetchOpts.interactive
	session, err := browser.Launch(ctx, browser.Options{
		Headless:        cfg.Browser.Headless && !useSSO,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.HTTP.UserAgent,
		PageLoadTimeout: cfg.Browser.PageLoad(),
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := auth.New(session, authOptions(cfg), logger).Authenticate(ctx, fetchOpts.interactive); err != nil {
		return err
	}
	printSuccess(out, "Successfully authenticated with Amazon Business")

	fetcher, err := httpclient.New(httpclient.Options{
		Timeout:          cfg.HTTP.RequestTimeout(),
		UserAgent:        cfg.HTTP.UserAgent,
		CloudflareBypass: cfg.HTTP.CloudflareBypass,
	}, logger)
	if err != nil {
		return err
	}

	client := scraper.New(session, fetcher, logger, scraperOptions(cfg))
	orders, err := client.RecentOrders(ctx, fetchOpts.days)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}
	printInfo(out, "Found %d orders in the past %d days", len(orders), fetchOpts.days)
	if debug {
		pp.Fprintln(cmd.ErrOrStderr(), orders)
	}
	if len(orders) == 0 {
		printInfo(out, "No orders found")
		return nil
	}

	summary, err := executors.New(logger, client, store, out).Run(ctx, orders, fetchOpts.dryRun)
	renderSummary(out, summary)
	if err != nil {
		return err
	}
	if summary.Errors > 0 {
		return errInvoicesFailed
	}
	return nil
}

// interruptible derives a context cancelled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func authOptions(cfg *config.Config) auth.Options {
	return auth.Options{
		BusinessURL:    cfg.Amazon.BusinessURL,
		Email:          cfg.Amazon.Email,
		Password:       cfg.Amazon.Password,
		UseSSO:         cfg.Amazon.UseSSO,
		LoginTimeout:   cfg.Amazon.LoginWait(),
		SSOTimeout:     cfg.Amazon.SSOWait(),
		ElementTimeout: cfg.Browser.ElementTimeout(),
		SettleDelay:    cfg.Scraper.SettleDelay(),
	}
}

func scraperOptions(cfg *config.Config) scraper.Options {
	return scraper.Options{
		BaseURL:        cfg.Amazon.BusinessURL,
		ElementTimeout: cfg.Browser.ElementTimeout(),
		SettleDelay:    cfg.Scraper.SettleDelay(),
		LoadMoreDelay:  cfg.Scraper.LoadMoreDelay(),
		MaxScrolls:     cfg.Scraper.MaxScrolls,
		UserAgent:      cfg.HTTP.UserAgent,
	}
}
