package budget

import (
	"errors"
	"testing"
)

func TestNewPlanFillsEmptyLedger(t *testing.T) {
	plan, warnings, err := NewPlan(scenarioParameters(), nil, DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings %v", warnings)
	}
	if plan.Ledger.Len() != 5 {
		t.Fatalf("expected 5 iterations, got %d", plan.Ledger.Len())
	}
	summary := plan.Summary()
	if summary.Consumed != 100000 || summary.PercentConsumed != 100 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(plan.VisibleSeries) == 0 {
		t.Errorf("expected default visible series")
	}
}

func TestNewPlanRejectsInvalidParameters(t *testing.T) {
	p := scenarioParameters()
	p.TeamSize = 0
	if _, _, err := NewPlan(p, nil, DefaultReconcileOptions()); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlanSetParameters(t *testing.T) {
	plan, _, err := NewPlan(scenarioParameters(), nil, DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if err := plan.Ledger.SetCurrent(2); err != nil {
		t.Fatalf("SetCurrent() error = %v", err)
	}

	p := plan.Parameters
	p.BudgetSize = 140000
	result, err := plan.SetParameters(p)
	if err != nil {
		t.Fatalf("SetParameters() error = %v", err)
	}
	if result.Appended != 2 || plan.Ledger.Len() != 7 {
		t.Fatalf("expected 2 appended iterations, got %+v", result)
	}
	if plan.Summary().CurrentIteration != 2 {
		t.Errorf("current iteration moved after append")
	}

	bad := p
	bad.CostPerHour = -1
	if _, err := plan.SetParameters(bad); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if plan.Parameters.CostPerHour != 50 || plan.Ledger.Len() != 7 {
		t.Errorf("invalid parameters mutated the plan")
	}
}

func TestPlanAddIteration(t *testing.T) {
	plan, _, _ := NewPlan(scenarioParameters(), nil, ReconcileOptions{Threshold: 3, MaxIterations: 6})

	added, err := plan.AddIteration(Iteration{})
	if err != nil {
		t.Fatalf("AddIteration() error = %v", err)
	}
	if added.Number != 6 || added.Days != 10 || added.TeamSize != 5 || added.TotalHours != 400 {
		t.Errorf("unexpected defaults %+v", added)
	}

	if _, err := plan.AddIteration(Iteration{}); !errors.Is(err, ErrIterationLimit) {
		t.Errorf("expected ErrIterationLimit, got %v", err)
	}
}

func TestRestorePlanKeepsSavedLedger(t *testing.T) {
	p := scenarioParameters()
	saved := []Iteration{NewIteration(1, 10, 5)}
	plan, err := RestorePlan(p, saved, []string{"cumulativeActual"}, DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("RestorePlan() error = %v", err)
	}
	if plan.Ledger.Len() != 1 {
		t.Errorf("RestorePlan reconciled the ledger: %d iterations", plan.Ledger.Len())
	}
	if len(plan.VisibleSeries) != 1 {
		t.Errorf("visible series not restored: %v", plan.VisibleSeries)
	}
}

func TestValidateSeries(t *testing.T) {
	tests := []struct {
		name    string
		series  []string
		wantErr bool
	}{
		{name: "empty", series: nil},
		{name: "all known", series: []string{"iterationCost", "cumulativeStandard", "cumulativeActual", "budget"}},
		{name: "unknown", series: []string{"cumulativeActual", "bogus"}, wantErr: true},
		{name: "case sensitive", series: []string{"Budget"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeries(tt.series)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSeries() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestRestorePlanRejectsUnknownSeries(t *testing.T) {
	_, err := RestorePlan(scenarioParameters(), nil, []string{"bogus"}, DefaultReconcileOptions())
	if !IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestPlanSetVisibleSeries(t *testing.T) {
	plan, _, err := NewPlan(scenarioParameters(), nil, DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if err := plan.SetVisibleSeries([]string{"budget"}); err != nil {
		t.Fatalf("SetVisibleSeries() error = %v", err)
	}
	if len(plan.VisibleSeries) != 1 || plan.VisibleSeries[0] != "budget" {
		t.Errorf("VisibleSeries = %v", plan.VisibleSeries)
	}
	if err := plan.SetVisibleSeries([]string{"bogus"}); err == nil {
		t.Errorf("expected an error for an unknown series")
	}
	if len(plan.VisibleSeries) != 1 {
		t.Errorf("rejected series changed the selection: %v", plan.VisibleSeries)
	}
	if err := plan.SetVisibleSeries(nil); err != nil || len(plan.VisibleSeries) != len(DefaultVisibleSeries()) {
		t.Errorf("empty selection: %v, %v", plan.VisibleSeries, err)
	}
}

func TestPlanUpdateIterationAndSetCurrent(t *testing.T) {
	plan, _, err := NewPlan(scenarioParameters(), nil, DefaultReconcileOptions())
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}

	hours := 300.0
	updated, err := plan.UpdateIteration(3, IterationPatch{TotalHours: &hours})
	if err != nil {
		t.Fatalf("UpdateIteration() error = %v", err)
	}
	if !updated.HoursOverridden || updated.TotalHours != 300 {
		t.Errorf("UpdateIteration() = %+v", updated)
	}

	if _, err := plan.UpdateIteration(99, IterationPatch{TotalHours: &hours}); !errors.Is(err, ErrIterationNotFound) {
		t.Errorf("missing iteration: got %v", err)
	}

	if err := plan.SetCurrent(2); err != nil {
		t.Fatalf("SetCurrent() error = %v", err)
	}
	for _, it := range plan.Ledger.Iterations() {
		if it.IsCurrent != (it.Number == 2) {
			t.Errorf("iteration %d isCurrent=%v", it.Number, it.IsCurrent)
		}
	}
	if err := plan.SetCurrent(99); !errors.Is(err, ErrIterationNotFound) {
		t.Errorf("missing iteration: got %v", err)
	}
}
