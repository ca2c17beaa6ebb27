package budget

import (
	"fmt"

	"github.com/iwvelando/sprint-budget/pkg/constants"
)

// Ledger is the ordered collection of iterations. Iteration numbers are
// unique and at most one iteration is current.
type Ledger struct {
	iterations []Iteration
	max        int
}

// NewLedger validates the given iterations and returns a ledger holding them.
func NewLedger(max int, iterations ...Iteration) (*Ledger, error) {
	if max <= 0 {
		max = constants.MaxIterations
	}
	l := &Ledger{max: max}
	if err := l.Replace(iterations); err != nil {
		return nil, err
	}
	return l, nil
}

// Len is the number of iterations in the ledger.
func (l *Ledger) Len() int {
	return len(l.iterations)
}

// Max is the ledger cap.
func (l *Ledger) Max() int {
	return l.max
}

// Iterations returns a sorted copy of the ledger.
func (l *Ledger) Iterations() []Iteration {
	return SortIterations(l.iterations)
}

// NextNumber is one past the highest iteration number.
func (l *Ledger) NextNumber() int {
	return nextNumber(l.iterations)
}

// Replace swaps the whole ledger after validating every record.
func (l *Ledger) Replace(iterations []Iteration) error {
	if len(iterations) > l.max {
		return fmt.Errorf("%w: %d iterations exceed the cap of %d", ErrIterationLimit, len(iterations), l.max)
	}
	seen := make(map[int]struct{}, len(iterations))
	currents := 0
	normalized := make([]Iteration, 0, len(iterations))
	for _, it := range iterations {
		if err := it.Validate(); err != nil {
			return err
		}
		if !it.HoursOverridden {
			it.TotalHours = it.DerivedHours()
		}
		normalized = append(normalized, it)
		if _, dup := seen[it.Number]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateIteration, it.Number)
		}
		seen[it.Number] = struct{}{}
		if it.IsCurrent {
			currents++
		}
	}
	if currents > 1 {
		return &ValidationError{Field: "isCurrent", Value: currents, Reason: "at most one iteration can be current"}
	}
	l.iterations = SortIterations(normalized)
	return nil
}

// Add appends an iteration. A current iteration clears the previous flag.
func (l *Ledger) Add(it Iteration) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if l.index(it.Number) >= 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateIteration, it.Number)
	}
	if len(l.iterations) >= l.max {
		return fmt.Errorf("%w: the ledger already holds %d iterations", ErrIterationLimit, l.max)
	}
	if it.IsCurrent {
		l.clearCurrent()
	}
	l.iterations = SortIterations(append(l.iterations, it))
	return nil
}

// IterationPatch carries the fields of an inline edit. Nil fields are left
// unchanged.
type IterationPatch struct {
	Days       *float64 `json:"iterationDays,omitempty"`
	TeamSize   *int     `json:"teamSize,omitempty"`
	TotalHours *float64 `json:"totalHours,omitempty"`
	IsCurrent  *bool    `json:"isCurrent,omitempty"`
}

// Update applies an inline edit to one iteration. Changing days or team size
// drops a previous hours override unless new hours are given in the same edit.
func (l *Ledger) Update(number int, patch IterationPatch) error {
	idx := l.index(number)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrIterationNotFound, number)
	}
	updated := l.iterations[idx]
	if patch.Days != nil {
		updated.Days = *patch.Days
		updated.HoursOverridden = false
	}
	if patch.TeamSize != nil {
		updated.TeamSize = *patch.TeamSize
		updated.HoursOverridden = false
	}
	if patch.TotalHours != nil {
		updated.OverrideHours(*patch.TotalHours)
	} else if !updated.HoursOverridden {
		updated.TotalHours = updated.DerivedHours()
	}
	if patch.IsCurrent != nil {
		updated.IsCurrent = *patch.IsCurrent
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if updated.IsCurrent {
		l.clearCurrent()
	}
	l.iterations[idx] = updated
	return nil
}

// SetCurrent flags one iteration as current and clears the others.
func (l *Ledger) SetCurrent(number int) error {
	idx := l.index(number)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrIterationNotFound, number)
	}
	l.clearCurrent()
	l.iterations[idx].IsCurrent = true
	return nil
}

func (l *Ledger) clearCurrent() {
	for i := range l.iterations {
		l.iterations[i].IsCurrent = false
	}
}

func (l *Ledger) index(number int) int {
	for i, it := range l.iterations {
		if it.Number == number {
			return i
		}
	}
	return -1
}
