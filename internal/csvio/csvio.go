// Package csvio imports and exports budget parameters, iteration ledgers and
// projections as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/mathutil"
)

// Column names of the parameters schema.
const (
	ColCostPerHour             = "costPerHour"
	ColBudgetSize              = "budgetSize"
	ColTeamSize                = "teamSize"
	ColWorkingDaysPerIteration = "workingDaysPerIteration"
	ColCurrency                = "currency"
)

// Column names of the iterations schema.
const (
	ColIterationNumber = "iterationNumber"
	ColIterationDays   = "iterationDays"
	ColTotalHours      = "totalHours"
	ColIsCurrent       = "isCurrent"
)

// ErrMalformed wraps structural CSV problems.
var ErrMalformed = errors.New("malformed CSV")

// IterationImport is the result of reading an iterations CSV.
type IterationImport struct {
	Iterations []budget.Iteration
	Warnings   []string
}

// ReadParameters reads a parameters CSV: a header naming at least the four
// numeric columns and exactly one data row.
func ReadParameters(r io.Reader) (budget.Parameters, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return budget.Parameters{}, err
	}
	cols, err := columnIndex(header, []string{ColCostPerHour, ColBudgetSize, ColTeamSize, ColWorkingDaysPerIteration})
	if err != nil {
		return budget.Parameters{}, err
	}
	if len(rows) == 0 {
		return budget.Parameters{}, fmt.Errorf("%w: no parameter row", ErrMalformed)
	}
	if len(rows) > 1 {
		return budget.Parameters{}, fmt.Errorf("%w: expected one parameter row, got %d", ErrMalformed, len(rows))
	}
	row := rows[0]

	var p budget.Parameters
	if p.CostPerHour, err = parseFloat(row, cols, ColCostPerHour); err != nil {
		return budget.Parameters{}, err
	}
	if p.BudgetSize, err = parseFloat(row, cols, ColBudgetSize); err != nil {
		return budget.Parameters{}, err
	}
	if p.TeamSize, err = parseInt(row, cols, ColTeamSize); err != nil {
		return budget.Parameters{}, err
	}
	if p.WorkingDaysPerIteration, err = parseFloat(row, cols, ColWorkingDaysPerIteration); err != nil {
		return budget.Parameters{}, err
	}
	p.Currency = constants.DefaultCurrency
	if idx, ok := cols[ColCurrency]; ok && strings.TrimSpace(row[idx]) != "" {
		p.Currency = strings.TrimSpace(row[idx])
	}

	if err := p.Validate(); err != nil {
		return budget.Parameters{}, err
	}
	return p, nil
}

// WriteParameters writes a parameters CSV that ReadParameters reads back
// unchanged.
func WriteParameters(w io.Writer, p budget.Parameters) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{ColCostPerHour, ColBudgetSize, ColTeamSize, ColWorkingDaysPerIteration, ColCurrency},
		{formatFloat(p.CostPerHour), formatFloat(p.BudgetSize), strconv.Itoa(p.TeamSize), formatFloat(p.WorkingDaysPerIteration), p.CurrencySymbol()},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write parameters CSV: %w", err)
	}
	return nil
}

// ReadIterations reads an iterations CSV. At most max data rows are kept.
// Rows with a non-positive or unparsable numeric field and rows repeating an
// iteration number are dropped; each drop is reported as a warning.
func ReadIterations(r io.Reader, max int) (IterationImport, error) {
	if max <= 0 {
		max = constants.MaxIterations
	}
	header, rows, err := readAll(r)
	if err != nil {
		return IterationImport{}, err
	}
	cols, err := columnIndex(header, []string{ColIterationNumber, ColIterationDays, ColTeamSize})
	if err != nil {
		return IterationImport{}, err
	}

	var result IterationImport
	if len(rows) > max {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d iteration rows found; only the first %d were imported", len(rows), max))
		rows = rows[:max]
	}

	seen := make(map[int]struct{}, len(rows))
	hasCurrent := false
	for i, row := range rows {
		line := i + 2
		it, err := parseIteration(row, cols)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d dropped: %v", line, err))
			continue
		}
		if _, dup := seen[it.Number]; dup {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d dropped: iteration %d appears more than once", line, it.Number))
			continue
		}
		seen[it.Number] = struct{}{}
		if it.IsCurrent {
			if hasCurrent {
				it.IsCurrent = false
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: iteration %d is not kept as current; only one iteration can be current", line, it.Number))
			}
			hasCurrent = true
		}
		result.Iterations = append(result.Iterations, it)
	}
	return result, nil
}

// WriteIterations writes an iterations CSV with every optional column.
func WriteIterations(w io.Writer, iterations []budget.Iteration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColIterationNumber, ColIterationDays, ColTeamSize, ColTotalHours, ColIsCurrent}); err != nil {
		return fmt.Errorf("failed to write iterations CSV: %w", err)
	}
	for _, it := range budget.SortIterations(iterations) {
		record := []string{
			strconv.Itoa(it.Number),
			formatFloat(it.Days),
			strconv.Itoa(it.TeamSize),
			formatFloat(it.Hours()),
			strconv.FormatBool(it.IsCurrent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write iterations CSV: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProjection writes the projection table: per-iteration cost, both
// cumulative curves, the remaining budget and the consumed percentage.
func WriteProjection(w io.Writer, p budget.Parameters, points []budget.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"label", "iterationCost", "cumulativeStandard", "cumulativeActual", "remaining", "percentConsumed", "isCurrent"}); err != nil {
		return fmt.Errorf("failed to write projection CSV: %w", err)
	}
	for _, pt := range points {
		record := []string{
			pt.Label,
			strconv.FormatFloat(mathutil.Round(pt.IterationCost), 'f', 2, 64),
			strconv.FormatFloat(mathutil.Round(pt.CumulativeStandard), 'f', 2, 64),
			strconv.FormatFloat(mathutil.Round(pt.CumulativeActual), 'f', 2, 64),
			strconv.FormatFloat(mathutil.Round(p.BudgetSize-pt.CumulativeActual), 'f', 2, 64),
			strconv.FormatFloat(mathutil.Round(mathutil.CalculatePercentage(pt.CumulativeActual, p.BudgetSize)), 'f', 2, 64),
			strconv.FormatBool(pt.IsCurrent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write projection CSV: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseIteration(row []string, cols map[string]int) (budget.Iteration, error) {
	var it budget.Iteration
	var err error
	if it.Number, err = parseInt(row, cols, ColIterationNumber); err != nil {
		return it, err
	}
	if it.Days, err = parseFloat(row, cols, ColIterationDays); err != nil {
		return it, err
	}
	if it.TeamSize, err = parseInt(row, cols, ColTeamSize); err != nil {
		return it, err
	}
	it.TotalHours = it.DerivedHours()
	if idx, ok := cols[ColTotalHours]; ok && strings.TrimSpace(row[idx]) != "" {
		hours, err := parseFloat(row, cols, ColTotalHours)
		if err != nil {
			return it, err
		}
		if !mathutil.WithinTolerance(hours, it.DerivedHours(), 1e-9) {
			it.OverrideHours(hours)
		}
	}
	if idx, ok := cols[ColIsCurrent]; ok {
		it.IsCurrent = parseBool(row[idx])
	}
	if err := it.Validate(); err != nil {
		return it, err
	}
	return it, nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	var rows [][]string
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return records[0], rows, nil
}

func columnIndex(header []string, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for _, known := range []string{
			ColCostPerHour, ColBudgetSize, ColTeamSize, ColWorkingDaysPerIteration, ColCurrency,
			ColIterationNumber, ColIterationDays, ColTotalHours, ColIsCurrent,
		} {
			if strings.EqualFold(name, known) {
				cols[known] = i
			}
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseFloat(row []string, cols map[string]int, name string) (float64, error) {
	raw := strings.TrimSpace(row[cols[name]])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &budget.ValidationError{Field: name, Value: raw, Reason: "not a number"}
	}
	if v <= 0 {
		return 0, &budget.ValidationError{Field: name, Value: v, Reason: "must be positive"}
	}
	return v, nil
}

func parseInt(row []string, cols map[string]int, name string) (int, error) {
	raw := strings.TrimSpace(row[cols[name]])
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &budget.ValidationError{Field: name, Value: raw, Reason: "not an integer"}
	}
	if v <= 0 {
		return 0, &budget.ValidationError{Field: name, Value: v, Reason: "must be positive"}
	}
	return v, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "x":
		return true
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
