package opt

import (
	"errors"
	"fmt"

	"github.com/bartolsthoorn/gohighs/highs"
)

// Status classifies a solver termination.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusNotSolved  Status = "not-solved"
	StatusUndefined  Status = "undefined"
)

// ErrNotOptimal marks a build that terminated without an optimal solution.
// Search drivers skip the point; single-run callers surface it.
var ErrNotOptimal = errors.New("no optimal solution")

// StatusError carries the solver status behind ErrNotOptimal.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string { return "solver finished " + string(e.Status) }

func (e *StatusError) Is(target error) bool { return target == ErrNotOptimal }

func mapStatus(s highs.ModelStatus) Status {
	switch s {
	case highs.ModelStatusOptimal:
		return StatusOptimal
	case highs.ModelStatusInfeasible:
		return StatusInfeasible
	case highs.ModelStatusUnbounded:
		return StatusUnbounded
	case highs.ModelStatusUnboundedOrInfeasible:
		return StatusUndefined
	default:
		return StatusNotSolved
	}
}

// Result is one solved allocation. Immutable once returned.
type Result struct {
	Timing  Timing                `json:"timing"`
	U1      [NumGroups]float64    `json:"u1"`
	U2      [NumGroups]float64    `json:"u2"`
	VPrime  [NumProducers]float64 `json:"vprime"`
	Z1      float64               `json:"z1"`
	Z2      float64               `json:"z2"`
	Z3      float64               `json:"z3"`
	Combined float64              `json:"combined"`
	Weights Weights               `json:"weights"`
	Equity  EquityMetrics         `json:"equity"`
}

// SolveFunc is the build-and-solve contract shared by the search drivers.
// Injecting it keeps the grid logic testable without a solver.
type SolveFunc func(p Problem, t Timing) (Result, error)

// Solve builds one LP for the given timing and runs HiGHS on it. Non-optimal
// terminations return a StatusError wrapping ErrNotOptimal; solver failures
// are returned as-is.
func Solve(p Problem, t Timing) (Result, error) {
	obj, err := BuildObjective(p, t)
	if err != nil {
		return Result{}, err
	}
	rows, err := BuildConstraints(p, t)
	if err != nil {
		return Result{}, err
	}

	lower, upper := columnBounds(p.Profile)
	model := highs.Model{
		ColCosts: obj.Combined.Coef,
		ColLower: lower,
		ColUpper: upper,
	}
	for _, r := range rows {
		model.AddDenseRow(r.Lower, r.Coef, r.Upper)
	}

	sol, err := model.Solve(highs.WithOutput(false))
	if err != nil {
		return Result{}, fmt.Errorf("highs: %w", err)
	}
	if st := mapStatus(sol.Status); st != StatusOptimal {
		return Result{}, &StatusError{Status: st}
	}

	x := sol.ColValues
	res := Result{Timing: t, Weights: p.Weights}
	for g := 0; g < NumGroups; g++ {
		res.U1[g] = sol.Value(colU1(g))
		res.U2[g] = sol.Value(colU2(g))
	}
	for i := 0; i < NumProducers; i++ {
		res.VPrime[i] = sol.Value(colVP(i))
	}
	res.Z1 = obj.Z1.Eval(x)
	res.Z2 = obj.Z2.Eval(x)
	res.Z3 = obj.Z3.Eval(x)
	// Evaluate the combined objective ourselves so the constant offset is
	// always included, whatever the solver reports.
	res.Combined = obj.Combined.Eval(x)
	res.Equity = ComputeEquity(p.Series, t, res.U1, res.U2)
	return res, nil
}
