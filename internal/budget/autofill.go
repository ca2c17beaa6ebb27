package budget

import (
	"fmt"

	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/mathutil"
)

// ReconcileOptions tune how the ledger follows parameter changes.
type ReconcileOptions struct {
	// Threshold is the largest difference between the required and the
	// current ledger length that is closed by appending; larger differences
	// regenerate the ledger.
	Threshold int
	// MaxIterations caps the ledger length.
	MaxIterations int
}

// DefaultReconcileOptions returns the stock threshold and cap.
func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		Threshold:     constants.DefaultReconcileThreshold,
		MaxIterations: constants.MaxIterations,
	}
}

func (o ReconcileOptions) normalized() ReconcileOptions {
	if o.Threshold < 0 {
		o.Threshold = constants.DefaultReconcileThreshold
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = constants.MaxIterations
	}
	return o
}

// ReconcileResult is the ledger after reconciliation plus what happened to it.
type ReconcileResult struct {
	Iterations  []Iteration `json:"iterations"`
	Required    int         `json:"required"`
	Regenerated bool        `json:"regenerated"`
	Appended    int         `json:"appended"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// RequiredIterations is the number of standard iterations needed for the
// standard curve to reach the budget, before any cap is applied.
func RequiredIterations(p Parameters) int {
	return mathutil.CeilRatio(p.BudgetSize, p.StandardIterationCost())
}

// Generate builds a fresh ledger of default iterations long enough for the
// standard curve to reach the budget, capped at max. The last iteration is
// marked current. Non-positive budget or iteration cost yields no records.
func Generate(p Parameters, max int) []Iteration {
	iterations, _ := generate(p, max)
	return iterations
}

func generate(p Parameters, max int) ([]Iteration, []string) {
	if max <= 0 {
		max = constants.MaxIterations
	}
	required := RequiredIterations(p)
	if required == 0 {
		return nil, nil
	}

	var warnings []string
	count := required
	if count > max {
		count = max
		warnings = append(warnings, capWarning(required, max))
	}

	iterations := make([]Iteration, count)
	for i := range iterations {
		iterations[i] = DefaultIteration(p, i+1)
	}
	iterations[count-1].IsCurrent = true
	return iterations, warnings
}

// Reconcile keeps an existing ledger in line with new parameters.
//
// An empty ledger is generated from scratch. When the required length differs
// from the current one by more than the threshold, or when the actual spend
// already exceeds the budget, the ledger is regenerated and manual edits are
// lost. Otherwise only the missing default iterations are appended, keeping
// existing records and the current flag.
func Reconcile(p Parameters, existing []Iteration, opts ReconcileOptions) ReconcileResult {
	opts = opts.normalized()
	required := RequiredIterations(p)
	result := ReconcileResult{Required: required}

	if required == 0 {
		return result
	}

	if len(existing) == 0 {
		result.Iterations, result.Warnings = generate(p, opts.MaxIterations)
		result.Regenerated = len(result.Iterations) > 0
		return result
	}

	target := required
	if target > opts.MaxIterations {
		target = opts.MaxIterations
	}

	consumed := Consumed(Project(p, existing))
	gap := target - len(existing)
	if abs(gap) > opts.Threshold || consumed > p.BudgetSize {
		result.Iterations, result.Warnings = generate(p, opts.MaxIterations)
		result.Regenerated = true
		if !sameIterations(SortIterations(existing), result.Iterations) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"ledger regenerated with %d iterations; manual edits were discarded", len(result.Iterations)))
		}
		return result
	}

	if required > opts.MaxIterations {
		result.Warnings = append(result.Warnings, capWarning(required, opts.MaxIterations))
	}

	iterations := SortIterations(existing)
	next := nextNumber(iterations)
	for i := 0; i < gap; i++ {
		iterations = append(iterations, DefaultIteration(p, next))
		next++
		result.Appended++
	}
	result.Iterations = iterations
	return result
}

func sameIterations(a, b []Iteration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func capWarning(required, max int) string {
	return fmt.Sprintf("budget requires %d iterations; ledger capped at %d", required, max)
}

func nextNumber(iterations []Iteration) int {
	highest := 0
	for _, it := range iterations {
		if it.Number > highest {
			highest = it.Number
		}
	}
	return highest + 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
