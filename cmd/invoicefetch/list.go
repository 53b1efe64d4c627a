package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yurifrl/invoicefetch/pkg/csv"
	"github.com/yurifrl/invoicefetch/pkg/filing"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

var (
	listFilters filters
	listOpts    struct {
		team   string
		year   int
		format string
	}
)

var csvHeader = []string{"team", "date", "amount", "invoice_number", "path"}

var listCmd = &cobra.Command{
	Use:   "list-invoices",
	Short: "List invoices already downloaded",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listOpts.team, "team", "", "Only list invoices of this team")
	listCmd.Flags().IntVar(&listOpts.year, "year", 0, "Only list invoices of this year")
	listCmd.Flags().StringVar(&listOpts.format, "format", "table", "Output format: table or csv")

	listCmd.Flags().StringVar(&listFilters.startDate, "start", "", "Start date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listFilters.endDate, "end", "", "End date (YYYY-MM-DD)")
	listCmd.Flags().Float64Var(&listFilters.minAmount, "min", 0, "Minimum amount")
	listCmd.Flags().Float64Var(&listFilters.maxAmount, "max", 0, "Maximum amount")
	listCmd.Flags().StringVar(&listFilters.invoice, "invoice", "", "Filter by invoice number (case insensitive)")
}

func runList(cmd *cobra.Command, _ []string) error {
	if listOpts.format != "table" && listOpts.format != "csv" {
		return fmt.Errorf("unknown --format %q, want table or csv", listOpts.format)
	}
	filter, err := listFilters.toFilterFunc()
	if err != nil {
		return err
	}

	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	invoices, err := collectInvoices(cfg.DownloadDir, listOpts.team, listOpts.year, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listOpts.format == "csv" {
		body, err := csv.Create(csvHeader, invoices, filter)
		if err != nil {
			return fmt.Errorf("render csv: %w", err)
		}
		_, err = out.Write(body)
		return err
	}

	var shown []models.StoredInvoice
	for _, inv := range invoices {
		if filter(inv) {
			shown = append(shown, inv)
		}
	}
	if len(shown) == 0 {
		printInfo(out, "No invoices found")
		return nil
	}
	renderInvoices(out, shown, listOpts.team == "")
	printInfo(out, "Total: %d invoices", len(shown))
	return nil
}

// collectInvoices lists one team, or every team directory under base when
// team is empty, ordered by date then team. Nothing is created on disk.
func collectInvoices(base, team string, year int, logger *log.Logger) ([]models.StoredInvoice, error) {
	var teams []string
	if team != "" {
		teams = []string{team}
	} else {
		entries, err := os.ReadDir(base)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read download dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				teams = append(teams, e.Name())
			}
		}
	}

	var all []models.StoredInvoice
	for _, t := range teams {
		dir := filepath.Join(base, t)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Debug("team directory missing", "team", t, "dir", dir)
			continue
		}
		store, err := filing.New(dir, logger)
		if err != nil {
			return nil, err
		}
		invoices, err := store.List(year)
		if err != nil {
			return nil, err
		}
		for i := range invoices {
			invoices[i].Team = t
		}
		all = append(all, invoices...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].Team < all[j].Team
	})
	return all, nil
}
