package executors

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	existingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	downloadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	problemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)

func entryLine(m Entry) string {
	return fmt.Sprintf("%s | %-19s | %10s | %s", m.Order.DateString(), m.Order.Number, m.Order.Total, m.Filename)
}

// Plan prints what Apply would do and returns the counts it would reach if
// every download succeeded.
func (e *Executor) Plan(report *Report) Summary {
	s := Summary{Total: len(report.Items)}
	for _, m := range report.Items {
		switch m.Status {
		case Exists:
			fmt.Fprintln(e.out, existingStyle.Render("= "+entryLine(m)))
			s.Skipped++
		case NoInvoice:
			fmt.Fprintln(e.out, problemStyle.Render("! "+entryLine(m)+" (no invoice link)"))
			s.Errors++
		default:
			fmt.Fprintln(e.out, downloadStyle.Render("+ Would download: "+m.Filename))
			s.Downloaded++
		}
	}

	fmt.Fprintf(e.out, "\nPlan: %d invoice(s) to download, %d already filed, %d without invoice link\n",
		report.Count(ToDownload), report.Count(Exists), report.Count(NoInvoice))
	return s
}
