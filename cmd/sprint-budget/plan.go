package main

import (
	"fmt"
	"os"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/csvio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// planFlags selects the inputs of a planning command. Parameters start from
// the configuration, then a parameters CSV, then individual flags.
type planFlags struct {
	parametersFile string
	iterationsFile string
	noReconcile    bool
	series         []string

	costPerHour float64
	budgetSize  float64
	teamSize    int
	days        float64
	currency    string
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.parametersFile, "parameters", "", "parameters CSV to start from")
	cmd.Flags().StringVar(&f.iterationsFile, "iterations", "", "iterations CSV to load into the ledger")
	cmd.Flags().BoolVar(&f.noReconcile, "no-reconcile", false, "keep the loaded ledger as is")
	cmd.Flags().StringSliceVar(&f.series, "series", nil, "series to chart (iterationCost, cumulativeStandard, cumulativeActual, budget)")
	cmd.Flags().Float64Var(&f.costPerHour, "cost-per-hour", 0, "cost per person-hour")
	cmd.Flags().Float64Var(&f.budgetSize, "budget", 0, "total budget")
	cmd.Flags().IntVar(&f.teamSize, "team-size", 0, "default team size")
	cmd.Flags().Float64Var(&f.days, "days", 0, "default working days per iteration")
	cmd.Flags().StringVar(&f.currency, "currency", "", "currency symbol")
}

// parameters resolves the effective parameters for cmd.
func (f *planFlags) parameters(cmd *cobra.Command, defaults budget.Parameters) (budget.Parameters, error) {
	p := defaults
	if f.parametersFile != "" {
		file, err := os.Open(f.parametersFile)
		if err != nil {
			return budget.Parameters{}, fmt.Errorf("failed to open parameters file: %w", err)
		}
		defer func() { _ = file.Close() }()
		p, err = csvio.ReadParameters(file)
		if err != nil {
			return budget.Parameters{}, fmt.Errorf("failed to read %s: %w", f.parametersFile, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("cost-per-hour") {
		p.CostPerHour = f.costPerHour
	}
	if flags.Changed("budget") {
		p.BudgetSize = f.budgetSize
	}
	if flags.Changed("team-size") {
		p.TeamSize = f.teamSize
	}
	if flags.Changed("days") {
		p.WorkingDaysPerIteration = f.days
	}
	if flags.Changed("currency") {
		p.Currency = f.currency
	}
	return p, p.Validate()
}

// plan builds the plan the command works on and returns reconciliation and
// import warnings.
func (c *cli) plan(cmd *cobra.Command, f *planFlags) (*budget.Plan, []string, error) {
	p, err := f.parameters(cmd, c.conf.Parameters)
	if err != nil {
		return nil, nil, err
	}

	var iterations []budget.Iteration
	var warnings []string
	if f.iterationsFile != "" {
		file, err := os.Open(f.iterationsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open iterations file: %w", err)
		}
		defer func() { _ = file.Close() }()
		imported, err := csvio.ReadIterations(file, c.conf.Planning.MaxIterations)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", f.iterationsFile, err)
		}
		iterations = imported.Iterations
		warnings = append(warnings, imported.Warnings...)
	}

	var plan *budget.Plan
	if f.noReconcile {
		plan, err = budget.RestorePlan(p, iterations, f.series, c.conf.ReconcileOptions())
	} else {
		var reconcileWarnings []string
		plan, reconcileWarnings, err = budget.NewPlan(p, iterations, c.conf.ReconcileOptions())
		warnings = append(warnings, reconcileWarnings...)
		if err == nil {
			err = plan.SetVisibleSeries(f.series)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	for _, warning := range warnings {
		c.logger.Warn(warning,
			zap.String("op", "main.plan"),
		)
	}
	return plan, warnings, nil
}
