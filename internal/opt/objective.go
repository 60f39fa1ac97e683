package opt

import (
	"fmt"
	"math"
)

// Column layout of one LP build. Coverage fractions first, then producer
// quantities, then the optional fairness slack.
const (
	colU1G1 = iota
	colU1G2
	colU2G1
	colU2G2
	colVP1
	colVP2
	numBaseCols
)

// Normalization constants bring the three raw objectives onto comparable
// scales before weighting.
const (
	normZ1 = 5000.0
	normZ2 = 400000.0
	normZ3 = 10000000.0
)

// numCols is the model width: the bounded-diff fairness style adds one slack
// column after the base variables.
func numCols(pr ScenarioProfile) int {
	if pr.Fairness == FairnessBoundedDiff {
		return numBaseCols + 1
	}
	return numBaseCols
}

// colDiff is the slack column index when present.
const colDiff = numBaseCols

func colU1(g int) int { return colU1G1 + g }
func colU2(g int) int { return colU2G1 + g }
func colVP(i int) int { return colVP1 + i }

// LinExpr is an affine expression over the model columns.
type LinExpr struct {
	Coef  []float64
	Const float64
}

func newExpr(n int) LinExpr { return LinExpr{Coef: make([]float64, n)} }

// Eval resolves the expression at a column-value vector.
func (e LinExpr) Eval(x []float64) float64 {
	v := e.Const
	for i, c := range e.Coef {
		if i < len(x) {
			v += c * x[i]
		}
	}
	return v
}

// addScaled accumulates k times o into e. Both must share a column count.
func (e *LinExpr) addScaled(o LinExpr, k float64) {
	for i, c := range o.Coef {
		e.Coef[i] += k * c
	}
	e.Const += k * o.Const
}

// Objective holds the three raw cost expressions and their weighted
// normalized combination. Only Combined is handed to the solver; the raw
// expressions are kept for reporting.
type Objective struct {
	Z1       LinExpr // supply cost
	Z2       LinExpr // social cost
	Z3       LinExpr // economic (quarantine) cost
	Combined LinExpr
}

// BuildObjective assembles the scalarized cost of one timing configuration.
//
// Z2 and Z3 decompose each group's horizon into three day windows: before
// dose 1 [0,tau1), between doses [tau1,tau2), and after dose 2 [tau2,T-1].
// Dose-1 coverage discounts infection cost in the middle window by up to 70%,
// dose-2 coverage discounts the last window by up to 90%, each offset by a
// fixed administration term.
func BuildObjective(p Problem, t Timing) (Objective, error) {
	horizon := p.Series.Horizon()
	if err := t.Validate(horizon); err != nil {
		return Objective{}, err
	}
	if !p.Weights.Valid() {
		return Objective{}, fmt.Errorf("weights (%.4f, %.4f, %.4f) do not sum to 1", p.Weights.W1, p.Weights.W2, p.Weights.W3)
	}

	n := numCols(p.Profile)
	end := horizon - 1
	obj := Objective{Z1: newExpr(n), Z2: newExpr(n), Z3: newExpr(n), Combined: newExpr(n)}

	for i := 0; i < NumProducers; i++ {
		obj.Z1.Coef[colVP(i)] = p.Costs.P[i]
	}

	for g := 0; g < NumGroups; g++ {
		tau1, tau2 := t.Tau1[g], t.Tau2[g]
		sc := p.Costs.SC[g]

		infectedBefore := windowSum(p.Series.I[g], 0, tau1)
		infectedBetween := windowSum(p.Series.I[g], tau1, tau2)
		infectedAfter := windowSum(p.Series.I[g], tau2, end+1)

		// Social cost: unmitigated before dose 1, then coverage-discounted.
		obj.Z2.Const += sc * infectedBefore
		obj.Z2.Const += sc * infectedBetween
		obj.Z2.Coef[colU1(g)] += -0.7*sc*infectedBetween + 1.5*p.Costs.CV1
		obj.Z2.Const += sc * infectedAfter
		obj.Z2.Coef[colU2(g)] += -0.9*sc*infectedAfter + 1.5*p.Costs.CV2

		// Economic cost: quarantine rate grows with window length. The
		// pre-vaccination window charges everyone still circulating
		// (S+I+Q); later windows charge infected only.
		ew := p.Profile.EconWeight[g]
		peopleBefore := windowSum(p.Series.S[g], 0, tau1) +
			windowSum(p.Series.I[g], 0, tau1) +
			windowSum(p.Series.Q[g], 0, tau1)

		cqBefore := p.Costs.A*float64(tau1) + p.Costs.B
		obj.Z3.Const += cqBefore * peopleBefore * ew

		cqBetween := p.Costs.A*float64(tau2-tau1) + p.Costs.B
		base := cqBetween * infectedBetween * ew
		obj.Z3.Const += base
		obj.Z3.Coef[colU1(g)] += -0.7 * base

		cqAfter := p.Costs.A*float64(end-tau2) + p.Costs.B
		base = cqAfter * infectedAfter * ew
		obj.Z3.Const += base
		obj.Z3.Coef[colU2(g)] += -0.9 * base
	}

	norms := p.norms()
	obj.Combined.addScaled(obj.Z1, p.Weights.W1/norms[0])
	obj.Combined.addScaled(obj.Z2, p.Weights.W2/norms[1])
	obj.Combined.addScaled(obj.Z3, p.Weights.W3/norms[2])
	return obj, nil
}

// groupWindows returns the three half-open-ish day ranges for a group:
// [0,tau1), [tau1,tau2), [tau2,end]. Used by tests to check the partition and
// by the demand constraints.
func groupWindows(t Timing, g, horizon int) [3][2]int {
	return [3][2]int{
		{0, t.Tau1[g]},
		{t.Tau1[g], t.Tau2[g]},
		{t.Tau2[g], horizon},
	}
}

// InfeasibleCost is the sentinel recorded for sweep points that fail to
// solve.
var InfeasibleCost = math.Inf(1)
