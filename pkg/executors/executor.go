// Package executors turns scraped orders into files on disk: a report of what
// is already filed, a dry-run plan and the download pass itself.
package executors

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/invoicefetch/pkg/models"
)

type Downloader interface {
	DownloadInvoice(ctx context.Context, locator string) ([]byte, error)
}

type Store interface {
	Exists(date time.Time, amount, invoiceNumber string) bool
	Save(content []byte, date time.Time, amount, invoiceNumber string) (string, error)
}

type Executor struct {
	logger     *log.Logger
	downloader Downloader
	store      Store
	out        io.Writer
}

func New(logger *log.Logger, downloader Downloader, store Store, out io.Writer) *Executor {
	return &Executor{
		logger:     logger,
		downloader: downloader,
		store:      store,
		out:        out,
	}
}

// Summary counts the outcome of a run.
type Summary struct {
	Downloaded int
	Skipped    int
	Errors     int
	Total      int
}

// Run files the invoices of orders, or only prints what it would do when
// dryRun is set.
func (e *Executor) Run(ctx context.Context, orders []models.Order, dryRun bool) (Summary, error) {
	report := BuildReport(orders, e.store)
	e.logger.Debug("report built", "orders", len(report.Items), "to_download", report.Count(ToDownload), "existing", report.Count(Exists))
	if dryRun {
		return e.Plan(report), nil
	}
	return e.Apply(ctx, report)
}
