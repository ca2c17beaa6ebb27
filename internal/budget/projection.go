package budget

import (
	"sort"

	"github.com/iwvelando/sprint-budget/pkg/mathutil"
)

// Summary condenses a projection for badges and report headers.
type Summary struct {
	Total            float64 `json:"total"`
	Consumed         float64 `json:"consumed"`
	Remaining        float64 `json:"remaining"`
	PercentConsumed  float64 `json:"percentConsumed"`
	StandardCost     float64 `json:"standardIterationCost"`
	CurrentIteration int     `json:"currentIteration"`
	// ExhaustionIteration is the first iteration whose actual cumulative cost
	// reaches the budget, 0 when the budget is never reached.
	ExhaustionIteration int `json:"exhaustionIteration"`
}

// SortIterations returns a copy of the iterations ordered by number.
func SortIterations(iterations []Iteration) []Iteration {
	sorted := make([]Iteration, len(iterations))
	copy(sorted, iterations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})
	return sorted
}

// currentIndex returns the index of the iteration flagged current, or the
// last index when none is.
func currentIndex(sorted []Iteration) int {
	for i, it := range sorted {
		if it.IsCurrent {
			return i
		}
	}
	return len(sorted) - 1
}

// Project maps parameters and iterations to the cumulative spend series.
//
// The standard curve advances by the standard iteration cost at every step
// regardless of the recorded values. The actual curve adds each iteration's
// real cost up to and including the current one and the standard cost after
// it. The result always starts with a zero-valued start point.
func Project(p Parameters, iterations []Iteration) []Point {
	sorted := SortIterations(iterations)
	points := make([]Point, 0, len(sorted)+1)
	points = append(points, Point{Label: StartLabel})

	standard := p.StandardIterationCost()
	current := currentIndex(sorted)

	var cumulativeStandard, cumulativeActual float64
	for i, it := range sorted {
		cost := it.Cost(p)
		cumulativeStandard += standard
		if i <= current {
			cumulativeActual += cost
		} else {
			cumulativeActual += standard
		}
		points = append(points, Point{
			Label:              Label(it.Number),
			Iteration:          it.Number,
			IterationCost:      cost,
			CumulativeStandard: cumulativeStandard,
			CumulativeActual:   cumulativeActual,
			IsCurrent:          i == current,
		})
	}
	return points
}

// Consumed returns the actual cumulative cost at the current iteration.
func Consumed(points []Point) float64 {
	for _, pt := range points {
		if pt.IsCurrent {
			return pt.CumulativeActual
		}
	}
	return 0
}

// Summarize derives budget badges from a projection.
func Summarize(p Parameters, points []Point) Summary {
	s := Summary{
		Total:        p.BudgetSize,
		StandardCost: p.StandardIterationCost(),
	}
	for _, pt := range points {
		if pt.IsCurrent {
			s.Consumed = pt.CumulativeActual
			s.CurrentIteration = pt.Iteration
		}
		if s.ExhaustionIteration == 0 && pt.Iteration > 0 && p.BudgetSize > 0 &&
			mathutil.Round(pt.CumulativeActual) >= mathutil.Round(p.BudgetSize) {
			s.ExhaustionIteration = pt.Iteration
		}
	}
	s.Remaining = s.Total - s.Consumed
	s.PercentConsumed = mathutil.CalculatePercentage(s.Consumed, s.Total)
	return s
}
