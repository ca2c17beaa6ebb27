// Package budget holds the planning model: cost parameters, the iteration
// ledger, the cumulative spend projection and the auto-fill logic that keeps
// the ledger long enough for the standard pace to reach the budget.
package budget

import (
	"fmt"
	"strings"

	"github.com/iwvelando/sprint-budget/pkg/constants"
)

// Parameters are the cost inputs shared by every iteration.
type Parameters struct {
	CostPerHour             float64 `json:"costPerHour" yaml:"costPerHour"`
	BudgetSize              float64 `json:"budgetSize" yaml:"budgetSize"`
	TeamSize                int     `json:"teamSize" yaml:"teamSize"`
	WorkingDaysPerIteration float64 `json:"workingDaysPerIteration" yaml:"workingDaysPerIteration"`
	Currency                string  `json:"currency" yaml:"currency"`
}

// DefaultParameters returns the parameters used before the user enters any.
func DefaultParameters() Parameters {
	return Parameters{
		CostPerHour:             constants.DefaultCostPerHour,
		BudgetSize:              constants.DefaultBudgetSize,
		TeamSize:                constants.DefaultTeamSize,
		WorkingDaysPerIteration: constants.DefaultWorkingDaysPerIteration,
		Currency:                constants.DefaultCurrency,
	}
}

// StandardIterationCost is the cost of one iteration run with the default
// team size and length.
func (p Parameters) StandardIterationCost() float64 {
	return p.CostPerHour * constants.HoursPerDay * float64(p.TeamSize) * p.WorkingDaysPerIteration
}

// CurrencySymbol returns the configured symbol or the default one.
func (p Parameters) CurrencySymbol() string {
	if c := strings.TrimSpace(p.Currency); c != "" {
		return c
	}
	return constants.DefaultCurrency
}

// Validate rejects non-positive numeric fields.
func (p Parameters) Validate() error {
	if p.CostPerHour <= 0 {
		return invalid("costPerHour", p.CostPerHour)
	}
	if p.BudgetSize <= 0 {
		return invalid("budgetSize", p.BudgetSize)
	}
	if p.TeamSize <= 0 {
		return invalid("teamSize", p.TeamSize)
	}
	if p.WorkingDaysPerIteration <= 0 {
		return invalid("workingDaysPerIteration", p.WorkingDaysPerIteration)
	}
	return nil
}

// Iteration is one planning period with its own duration and team size.
type Iteration struct {
	Number          int     `json:"iterationNumber"`
	Days            float64 `json:"iterationDays"`
	TeamSize        int     `json:"teamSize"`
	TotalHours      float64 `json:"totalHours"`
	HoursOverridden bool    `json:"hoursOverridden,omitempty"`
	IsCurrent       bool    `json:"isCurrent"`
}

// NewIteration builds an iteration whose hours are derived from days and team size.
func NewIteration(number int, days float64, teamSize int) Iteration {
	it := Iteration{Number: number, Days: days, TeamSize: teamSize}
	it.TotalHours = it.DerivedHours()
	return it
}

// DefaultIteration builds an iteration shaped by the default parameters.
func DefaultIteration(p Parameters, number int) Iteration {
	return NewIteration(number, p.WorkingDaysPerIteration, p.TeamSize)
}

// DerivedHours is days × team size × hours per day.
func (it Iteration) DerivedHours() float64 {
	return it.Days * float64(it.TeamSize) * constants.HoursPerDay
}

// Hours returns the billed hours: the manual override when set, the derived
// value otherwise.
func (it Iteration) Hours() float64 {
	if it.HoursOverridden {
		return it.TotalHours
	}
	return it.DerivedHours()
}

// OverrideHours pins the total hours to a manual value.
func (it *Iteration) OverrideHours(hours float64) {
	it.TotalHours = hours
	it.HoursOverridden = true
}

// Cost is cost per hour × billed hours.
func (it Iteration) Cost(p Parameters) float64 {
	return p.CostPerHour * it.Hours()
}

// Validate rejects non-positive fields.
func (it Iteration) Validate() error {
	if it.Number <= 0 {
		return invalid("iterationNumber", it.Number)
	}
	if it.Days <= 0 {
		return invalid("iterationDays", it.Days)
	}
	if it.TeamSize <= 0 {
		return invalid("teamSize", it.TeamSize)
	}
	if it.HoursOverridden && it.TotalHours <= 0 {
		return invalid("totalHours", it.TotalHours)
	}
	return nil
}

// Point is one step of the projection. The first point of every projection
// is a zero-valued start point with Iteration 0.
type Point struct {
	Label              string  `json:"label"`
	Iteration          int     `json:"iteration"`
	IterationCost      float64 `json:"iterationCost"`
	CumulativeStandard float64 `json:"cumulativeStandardCost"`
	CumulativeActual   float64 `json:"cumulativeActualCost"`
	IsCurrent          bool    `json:"isCurrent,omitempty"`
}

// Label names an iteration for tables and chart axes.
func Label(number int) string {
	return fmt.Sprintf("Iteration %d", number)
}

// StartLabel names the zero-valued start point.
const StartLabel = "Start"
