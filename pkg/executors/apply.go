package executors

import (
	"context"
	"fmt"
	"path/filepath"
)

// Apply downloads and files every entry marked ToDownload. A failing order is
// logged and counted, never fatal; only cancellation stops the run early.
func (e *Executor) Apply(ctx context.Context, report *Report) (Summary, error) {
	s := Summary{Total: len(report.Items)}

	for _, m := range report.Items {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		o := m.Order
		switch m.Status {
		case NoInvoice:
			e.logger.Warn("no invoice link found", "order", o.Number)
			s.Errors++
			continue
		case Exists:
			e.logger.Info("invoice already exists, skipping", "order", o.Number)
			s.Skipped++
			continue
		}

		content, err := e.downloader.DownloadInvoice(ctx, o.InvoiceURL)
		if err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			e.logger.Warn("failed to download invoice", "order", o.Number, "error", err)
			s.Errors++
			continue
		}

		path, err := e.store.Save(content, o.Date, o.Total, o.Number)
		if err != nil {
			e.logger.Warn("failed to save invoice", "order", o.Number, "error", err)
			s.Errors++
			continue
		}

		fmt.Fprintln(e.out, downloadStyle.Render("Downloaded: "+filepath.Base(path)))
		s.Downloaded++
	}

	e.logger.Info("run complete", "downloaded", s.Downloaded, "skipped", s.Skipped, "errors", s.Errors, "total", s.Total)
	return s, nil
}
