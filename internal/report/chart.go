package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/format"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	colorStandard = drawing.ColorFromHex("1f77b4")
	colorActual   = drawing.ColorFromHex("d62728")
	colorBudget   = drawing.ColorFromHex("2ca02c")
	colorCost     = drawing.ColorFromHex("9467bd")
)

// ErrTooFewPoints is returned when a projection cannot be drawn as a line.
var ErrTooFewPoints = errors.New("chart needs at least 2 points")

// WriteChart rasterizes the visible series of a projection as a PNG.
func WriteChart(w io.Writer, p budget.Parameters, points []budget.Point, visible []string, width, height int) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	if len(visible) == 0 {
		visible = budget.DefaultVisibleSeries()
	}
	show := make(map[string]bool, len(visible))
	for _, s := range visible {
		show[s] = true
	}

	xs := make([]float64, len(points))
	standard := make([]float64, len(points))
	actual := make([]float64, len(points))
	costs := make([]float64, len(points))
	ticks := make([]chart.Tick, len(points))
	for i, pt := range points {
		xs[i] = float64(i)
		standard[i] = pt.CumulativeStandard
		actual[i] = pt.CumulativeActual
		costs[i] = pt.IterationCost
		label := pt.Label
		if pt.Iteration > 0 {
			label = fmt.Sprintf("%d", pt.Iteration)
		}
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}
	if len(ticks) > 25 {
		ticks = thinTicks(ticks, 25)
	}

	var series []chart.Series
	if show[constants.SeriesCumulativeStandard] {
		series = append(series, chart.ContinuousSeries{
			Name:    "Standard cumulative",
			XValues: xs,
			YValues: standard,
			Style:   chart.Style{StrokeColor: colorStandard, StrokeWidth: 2},
		})
	}
	if show[constants.SeriesCumulativeActual] {
		series = append(series, chart.ContinuousSeries{
			Name:    "Actual cumulative",
			XValues: xs,
			YValues: actual,
			Style:   chart.Style{StrokeColor: colorActual, StrokeWidth: 2},
		})
	}
	if show[constants.SeriesIterationCost] {
		series = append(series, chart.ContinuousSeries{
			Name:    "Iteration cost",
			XValues: xs,
			YValues: costs,
			Style:   chart.Style{StrokeColor: colorCost, StrokeWidth: 1},
		})
	}
	if show[constants.SeriesBudget] && p.BudgetSize > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "Budget",
			XValues: []float64{xs[0], xs[len(xs)-1]},
			YValues: []float64{p.BudgetSize, p.BudgetSize},
			Style: chart.Style{
				StrokeColor:     colorBudget,
				StrokeWidth:     2,
				StrokeDashArray: []float64{6, 4},
			},
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("no visible series to draw")
	}

	symbol := p.CurrencySymbol()
	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Iteration",
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Cost",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return format.Currency(symbol, f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// thinTicks keeps at most max evenly spaced ticks, always including the last.
func thinTicks(ticks []chart.Tick, max int) []chart.Tick {
	step := (len(ticks) + max - 1) / max
	out := make([]chart.Tick, 0, max+1)
	for i := 0; i < len(ticks); i += step {
		out = append(out, ticks[i])
	}
	if last := ticks[len(ticks)-1]; out[len(out)-1].Value != last.Value {
		out = append(out, last)
	}
	return out
}
