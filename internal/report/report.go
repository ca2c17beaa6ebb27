// Package report renders a projection as a printable PDF: summary badges, a
// chart of the cumulative curves and a per-iteration table.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/pkg/format"
	"github.com/iwvelando/sprint-budget/pkg/mathutil"
)

// Options controls report metadata.
type Options struct {
	Title         string
	OwnerID       string
	GeneratedAt   time.Time
	VisibleSeries []string
}

// Row is one line of the iteration table.
type Row struct {
	Label              string
	IterationCost      float64
	CumulativeStandard float64
	CumulativeActual   float64
	Remaining          float64
	PercentConsumed    float64
	Current            bool
	Exhaustion         bool
}

const (
	pageMargin    = 15.0
	rowHeight     = 7.0
	chartWidthPx  = 1000
	chartHeightPx = 500
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Iteration", 30, "L"},
	{"Cost", 28, "R"},
	{"Standard cum.", 32, "R"},
	{"Actual cum.", 32, "R"},
	{"Remaining", 30, "R"},
	{"% consumed", 28, "R"},
}

// Rows builds the table rows, marking the current iteration and the first
// iteration whose actual cumulative cost reaches the budget.
func Rows(p budget.Parameters, points []budget.Point) []Row {
	summary := budget.Summarize(p, points)
	rows := make([]Row, 0, len(points))
	for _, pt := range points {
		rows = append(rows, Row{
			Label:              pt.Label,
			IterationCost:      pt.IterationCost,
			CumulativeStandard: pt.CumulativeStandard,
			CumulativeActual:   pt.CumulativeActual,
			Remaining:          p.BudgetSize - pt.CumulativeActual,
			PercentConsumed:    mathutil.CalculatePercentage(pt.CumulativeActual, p.BudgetSize),
			Current:            pt.IsCurrent,
			Exhaustion:         pt.Iteration > 0 && pt.Iteration == summary.ExhaustionIteration,
		})
	}
	return rows
}

// Render writes the PDF report for a projection to w.
func Render(w io.Writer, p budget.Parameters, points []budget.Point, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Sprint Budget Projection"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate so symbols like € survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opts.Title, true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(opts.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Generated "+opts.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	if opts.OwnerID != "" {
		pdf.CellFormat(0, 6, tr("Prepared for "+opts.OwnerID), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	summary := budget.Summarize(p, points)
	symbol := p.CurrencySymbol()
	writeBadges(pdf, tr, []badge{
		{"Total budget", format.Currency(symbol, summary.Total)},
		{"Consumed", format.Currency(symbol, summary.Consumed) + " (" + format.Percent(summary.PercentConsumed) + ")"},
		{"Remaining", format.Currency(symbol, summary.Remaining)},
	})
	pdf.Ln(6)

	var png bytes.Buffer
	switch err := WriteChart(&png, p, points, opts.VisibleSeries, chartWidthPx, chartHeightPx); {
	case err == nil:
		imgOpts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("projection-chart", imgOpts, &png)
		pageW, _ := pdf.GetPageSize()
		width := pageW - 2*pageMargin
		pdf.ImageOptions("projection-chart", pageMargin, pdf.GetY(), width, width/2, true, imgOpts, 0, "")
		pdf.Ln(4)
	case errors.Is(err, ErrTooFewPoints):
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "Not enough iterations to draw a chart.", "", 1, "L", false, 0, "")
	default:
		return err
	}

	writeTable(pdf, tr, symbol, Rows(p, points))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

type badge struct {
	label string
	value string
}

func writeBadges(pdf *fpdf.Fpdf, tr func(string) string, badges []badge) {
	pageW, _ := pdf.GetPageSize()
	gap := 4.0
	width := (pageW - 2*pageMargin - gap*float64(len(badges)-1)) / float64(len(badges))
	x, y := pdf.GetX(), pdf.GetY()
	for i, b := range badges {
		left := x + float64(i)*(width+gap)
		pdf.SetFillColor(240, 243, 248)
		pdf.Rect(left, y, width, 18, "F")
		pdf.SetXY(left+3, y+2)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(width-6, 5, b.label, "", 2, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(width-6, 8, tr(b.value), "", 0, "L", false, 0, "")
	}
	pdf.SetXY(x, y+18)
}

func writeTableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(50, 60, 80)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range columns {
		pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func writeTable(pdf *fpdf.Fpdf, tr func(string) string, symbol string, rows []Row) {
	_, pageH := pdf.GetPageSize()
	bottom := pageH - pageMargin - 8

	if pdf.GetY()+2*rowHeight > bottom {
		pdf.AddPage()
	}
	writeTableHeader(pdf)
	for _, r := range rows {
		if pdf.GetY()+rowHeight > bottom {
			pdf.AddPage()
			writeTableHeader(pdf)
		}
		fill := true
		switch {
		case r.Exhaustion:
			pdf.SetFillColor(248, 215, 218)
		case r.Current:
			pdf.SetFillColor(255, 243, 205)
		default:
			fill = false
		}
		pdf.SetFont("Helvetica", "", 9)
		if r.Current || r.Exhaustion {
			pdf.SetFont("Helvetica", "B", 9)
		}
		pdf.SetTextColor(0, 0, 0)
		values := []string{
			r.Label,
			format.Currency(symbol, r.IterationCost),
			format.Currency(symbol, r.CumulativeStandard),
			format.Currency(symbol, r.CumulativeActual),
			format.Currency(symbol, r.Remaining),
			format.Percent(r.PercentConsumed),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, rowHeight, tr(values[i]), "1", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}
