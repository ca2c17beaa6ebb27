package budget

import (
	"github.com/iwvelando/sprint-budget/pkg/constants"
)

// Plan is the working state of one planning session: parameters, ledger and
// the series selected for display. It is passed explicitly to whatever
// renders or persists it.
type Plan struct {
	Parameters    Parameters
	Ledger        *Ledger
	VisibleSeries []string
	options       ReconcileOptions
}

// DefaultVisibleSeries lists the series shown when nothing was selected.
func DefaultVisibleSeries() []string {
	return []string{
		constants.SeriesCumulativeStandard,
		constants.SeriesCumulativeActual,
		constants.SeriesBudget,
	}
}

// NewPlan validates the parameters, loads the iterations and reconciles the
// ledger against the parameters. The returned warnings come from
// reconciliation.
func NewPlan(p Parameters, iterations []Iteration, opts ReconcileOptions) (*Plan, []string, error) {
	opts = opts.normalized()
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	ledger, err := NewLedger(opts.MaxIterations, iterations...)
	if err != nil {
		return nil, nil, err
	}
	plan := &Plan{
		Parameters:    p,
		Ledger:        ledger,
		VisibleSeries: DefaultVisibleSeries(),
		options:       opts,
	}
	warnings, err := plan.reconcile()
	if err != nil {
		return nil, nil, err
	}
	return plan, warnings, nil
}

// RestorePlan rebuilds a plan from saved state without reconciling, so a
// loaded snapshot shows exactly the ledger that was saved.
func RestorePlan(p Parameters, iterations []Iteration, visible []string, opts ReconcileOptions) (*Plan, error) {
	opts = opts.normalized()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ledger, err := NewLedger(opts.MaxIterations, iterations...)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Parameters: p, Ledger: ledger, options: opts}
	if err := plan.SetVisibleSeries(visible); err != nil {
		return nil, err
	}
	return plan, nil
}

// ValidateSeries rejects names that are not chart series.
func ValidateSeries(names []string) error {
	for _, name := range names {
		switch name {
		case constants.SeriesIterationCost, constants.SeriesCumulativeStandard,
			constants.SeriesCumulativeActual, constants.SeriesBudget:
		default:
			return &ValidationError{Field: "visibleSeries", Value: name, Reason: "unknown series"}
		}
	}
	return nil
}

// SetVisibleSeries selects the series to chart. An empty selection restores
// the defaults.
func (pl *Plan) SetVisibleSeries(names []string) error {
	if err := ValidateSeries(names); err != nil {
		return err
	}
	if len(names) == 0 {
		pl.VisibleSeries = DefaultVisibleSeries()
		return nil
	}
	pl.VisibleSeries = append([]string(nil), names...)
	return nil
}

// Options returns the reconcile options the plan was built with.
func (pl *Plan) Options() ReconcileOptions {
	return pl.options
}

// SetParameters replaces the parameters and reconciles the ledger. Invalid
// parameters leave the plan unchanged.
func (pl *Plan) SetParameters(p Parameters) (ReconcileResult, error) {
	if err := p.Validate(); err != nil {
		return ReconcileResult{}, err
	}
	result := Reconcile(p, pl.Ledger.Iterations(), pl.options)
	if err := pl.Ledger.Replace(result.Iterations); err != nil {
		return ReconcileResult{}, err
	}
	pl.Parameters = p
	return result, nil
}

// AddIteration appends an iteration to the ledger. Days or team size left at
// zero take the parameter defaults and a zero number takes the next free one.
func (pl *Plan) AddIteration(it Iteration) (Iteration, error) {
	if it.Number == 0 {
		it.Number = pl.Ledger.NextNumber()
	}
	if it.Days == 0 {
		it.Days = pl.Parameters.WorkingDaysPerIteration
	}
	if it.TeamSize == 0 {
		it.TeamSize = pl.Parameters.TeamSize
	}
	if !it.HoursOverridden {
		it.TotalHours = it.DerivedHours()
	}
	if err := pl.Ledger.Add(it); err != nil {
		return Iteration{}, err
	}
	return it, nil
}

// UpdateIteration applies an inline edit to one iteration.
func (pl *Plan) UpdateIteration(number int, patch IterationPatch) (Iteration, error) {
	if err := pl.Ledger.Update(number, patch); err != nil {
		return Iteration{}, err
	}
	return pl.Ledger.iterations[pl.Ledger.index(number)], nil
}

// SetCurrent marks one iteration as current.
func (pl *Plan) SetCurrent(number int) error {
	return pl.Ledger.SetCurrent(number)
}

// Projection computes the cumulative series for the current state.
func (pl *Plan) Projection() []Point {
	return Project(pl.Parameters, pl.Ledger.Iterations())
}

// Summary computes the budget badges for the current state.
func (pl *Plan) Summary() Summary {
	return Summarize(pl.Parameters, pl.Projection())
}

func (pl *Plan) reconcile() ([]string, error) {
	result := Reconcile(pl.Parameters, pl.Ledger.Iterations(), pl.options)
	if err := pl.Ledger.Replace(result.Iterations); err != nil {
		return nil, err
	}
	return result.Warnings, nil
}
