package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/yurifrl/invoicefetch/pkg/executors"
	"github.com/yurifrl/invoicefetch/pkg/models"
)

var (
	infoLabel    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Render("Info:")
	successLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("Success:")
	errorLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Error:")
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).
			Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, infoLabel, fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successLabel, fmt.Sprintf(format, args...))
}

func printError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorLabel, msg)
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func describe(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Operation cancelled by user"
	}
	return err.Error()
}

func renderSummary(w io.Writer, s executors.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Download Summary")
	t.AppendHeader(table.Row{"Status", "Count"})
	t.AppendRows([]table.Row{
		{"Downloaded", s.Downloaded},
		{"Skipped (already exists)", s.Skipped},
		{"Errors", s.Errors},
		{"Total processed", s.Total},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// renderInvoices prints the listing; the team column is shown only when more
// than one team may appear.
func renderInvoices(w io.Writer, invoices []models.StoredInvoice, withTeam bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Existing Invoices")

	header := table.Row{}
	if withTeam {
		header = append(header, "Team")
	}
	t.AppendHeader(append(header, "Date", "Amount", "Invoice #", "File"))

	for _, inv := range invoices {
		row := table.Row{}
		if withTeam {
			row = append(row, inv.Team)
		}
		t.AppendRow(append(row, inv.Date.Format("2006-01-02"), "$"+inv.Amount, inv.InvoiceNumber, inv.Filename()))
	}

	amountCol := 2
	if withTeam {
		amountCol = 3
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: amountCol, Align: text.AlignRight}})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
