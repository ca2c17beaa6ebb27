// Package output renders projections and snapshot listings for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/csvio"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/format"
)

var (
	colorBorder  = lipgloss.Color("#575653")
	colorAccent  = lipgloss.Color("#3AA99F")
	colorCurrent = lipgloss.Color("#D0A215")
	colorOver    = lipgloss.Color("#D14D41")
	colorWarn    = lipgloss.Color("#DA702C")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	currentStyle = numberStyle.Bold(true).Foreground(colorCurrent)
	overStyle    = numberStyle.Foreground(colorOver)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6F6E69"))
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
)

// PrettyFormat writes a human-readable projection table followed by the
// budget summary and any warnings.
func PrettyFormat(w io.Writer, p budget.Parameters, points []budget.Point, warnings []string) error {
	symbol := p.CurrencySymbol()
	summary := budget.Summarize(p, points)

	rows := make([][]string, 0, len(points))
	for _, pt := range points {
		label := pt.Label
		if pt.IsCurrent {
			label += " *"
		}
		rows = append(rows, []string{
			label,
			format.Currency(symbol, pt.IterationCost),
			format.Currency(symbol, pt.CumulativeStandard),
			format.Currency(symbol, pt.CumulativeActual),
			format.Currency(symbol, p.BudgetSize-pt.CumulativeActual),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("Iteration", "Cost", "Standard", "Actual", "Remaining").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(points) {
				return cellStyle
			}
			pt := points[row]
			switch {
			case col == 0 && pt.IsCurrent:
				return currentStyle.Align(lipgloss.Left)
			case col == 0:
				return cellStyle
			case pt.IsCurrent:
				return currentStyle
			case summary.ExhaustionIteration > 0 && pt.Iteration >= summary.ExhaustionIteration:
				return overStyle
			default:
				return numberStyle
			}
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Total budget:"), format.Currency(symbol, summary.Total))
	fmt.Fprintf(&b, "%s %s (%s)\n", labelStyle.Render("Consumed:    "),
		format.Currency(symbol, summary.Consumed), format.Percent(summary.PercentConsumed))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Remaining:   "), format.Currency(symbol, summary.Remaining))
	if summary.ExhaustionIteration > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Exhausted at:"), budget.Label(summary.ExhaustionIteration))
	}
	for _, warning := range warnings {
		b.WriteString(warnStyle.Render("warning: "+warning) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvFormat writes the projection in comma-separated value format.
func CsvFormat(w io.Writer, p budget.Parameters, points []budget.Point) error {
	return csvio.WriteProjection(w, p, points)
}

// SnapshotTable lists saved snapshots, newest first.
func SnapshotTable(w io.Writer, snapshots []snapshot.Snapshot) error {
	if len(snapshots) == 0 {
		_, err := io.WriteString(w, "No saved snapshots.\n")
		return err
	}
	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		where := "local"
		if s.Remote {
			where = "remote"
		} else if s.OwnerID != "" {
			where = "local+remote"
		}
		rows = append(rows, []string{
			s.ID,
			s.Name,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", len(s.State.Iterations)),
			where,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("ID", "Name", "Saved", "Iterations", "Stored").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := io.WriteString(w, t.String()+"\n")
	return err
}
