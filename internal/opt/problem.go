package opt

import (
	"errors"
	"fmt"
)

// Two priority groups (elderly, working) and two vaccine producers.
const (
	NumGroups    = 2
	NumProducers = 2
)

// Series holds the observed epidemic trajectories per group, indexed by day.
// All sequences must share the same horizon; the loader enforces that.
type Series struct {
	S  [NumGroups][]float64 // susceptible
	I  [NumGroups][]float64 // infected
	Q  [NumGroups][]float64 // quarantined
	V1 [NumGroups][]float64 // dose-1 vaccinated
	V2 [NumGroups][]float64 // dose-2 vaccinated
	R  [NumGroups][]float64 // recovered
}

// Horizon returns the number of time points T.
func (s Series) Horizon() int { return len(s.S[0]) }

// CostParams are the fixed scenario cost and capacity inputs.
type CostParams struct {
	P   [NumProducers]float64 // unit supply cost per producer
	SC  [NumGroups]float64    // social cost per infected day
	CV1 float64               // fixed dose-1 administration cost
	CV2 float64               // fixed dose-2 administration cost
	L   float64               // total production capacity
	A   float64               // quarantine cost per day
	B   float64               // quarantine cost base
}

// DefaultCostParams returns the baseline two-producer scenario.
func DefaultCostParams() CostParams {
	return CostParams{
		P:   [NumProducers]float64{8, 6},
		SC:  [NumGroups]float64{300, 300},
		CV1: 50,
		CV2: 30,
		L:   3000,
		A:   15,
		B:   40,
	}
}

// Timing fixes the dose-1 and dose-2 start days per group. The epidemic end
// day is always the last point of the series.
type Timing struct {
	Tau1 [NumGroups]int `json:"tau1"`
	Tau2 [NumGroups]int `json:"tau2"`
}

// DefaultTiming returns the baseline schedule (45-day gap).
func DefaultTiming() Timing {
	return Timing{Tau1: [NumGroups]int{30, 35}, Tau2: [NumGroups]int{75, 80}}
}

// ErrInvalidTiming marks timings that violate 0 <= tau1 < tau2 <= T-1.
var ErrInvalidTiming = errors.New("invalid timing")

// Validate checks the timing against a series horizon. The search driver only
// generates valid points; this guards direct callers.
func (t Timing) Validate(horizon int) error {
	for g := 0; g < NumGroups; g++ {
		if t.Tau1[g] < 0 {
			return fmt.Errorf("group %d: tau1 %d is negative: %w", g+1, t.Tau1[g], ErrInvalidTiming)
		}
		if t.Tau1[g] >= t.Tau2[g] {
			return fmt.Errorf("group %d: tau1 %d >= tau2 %d: %w", g+1, t.Tau1[g], t.Tau2[g], ErrInvalidTiming)
		}
		if t.Tau2[g] > horizon-1 {
			return fmt.Errorf("group %d: tau2 %d past end day %d: %w", g+1, t.Tau2[g], horizon-1, ErrInvalidTiming)
		}
	}
	return nil
}

// Gap returns the dose interval for a group.
func (t Timing) Gap(g int) int { return t.Tau2[g] - t.Tau1[g] }

// FairnessKind selects how the constraint set keeps allocation from
// collapsing onto a single group.
type FairnessKind string

const (
	// FairnessBoundedDiff bounds |coverage(group2) - coverage(group1)| by a
	// capped slack variable.
	FairnessBoundedDiff FairnessKind = "bounded-diff"
	// FairnessPriority forces group 1 coverage to dominate group 2 while
	// neither group may exceed twice the other.
	FairnessPriority FairnessKind = "priority"
)

// ScenarioProfile bundles the tunable bounds and fairness style of one
// problem variant.
type ScenarioProfile struct {
	Name             string                `json:"name" yaml:"name"`
	MinU1            [NumGroups]float64    `json:"minU1" yaml:"minU1"`
	MaxU1            [NumGroups]float64    `json:"maxU1" yaml:"maxU1"`
	MinU2            [NumGroups]float64    `json:"minU2" yaml:"minU2"`
	MaxU2            [NumGroups]float64    `json:"maxU2" yaml:"maxU2"`
	GroupShareFloor  [NumGroups]float64    `json:"groupShareFloor" yaml:"groupShareFloor"`
	ProducerShareMin float64               `json:"producerShareMin" yaml:"producerShareMin"`
	ProducerShareMax float64               `json:"producerShareMax" yaml:"producerShareMax"`
	MaxDoseRatio     float64               `json:"maxDoseRatio" yaml:"maxDoseRatio"`
	Fairness         FairnessKind          `json:"fairness" yaml:"fairness"`
	DiffCap          float64               `json:"diffCap" yaml:"diffCap"`
	EconWeight       [NumGroups]float64    `json:"econWeight" yaml:"econWeight"`
}

// FlexibleProfile gives the objective weights room to move allocation: wide
// coverage bounds and a soft bounded-difference fairness term.
func FlexibleProfile() ScenarioProfile {
	return ScenarioProfile{
		Name:             "flexible",
		MinU1:            [NumGroups]float64{0.05, 0.05},
		MaxU1:            [NumGroups]float64{0.95, 0.95},
		MinU2:            [NumGroups]float64{0.05, 0.05},
		MaxU2:            [NumGroups]float64{0.95, 0.95},
		GroupShareFloor:  [NumGroups]float64{0.20, 0.20},
		ProducerShareMin: 0.10,
		ProducerShareMax: 0.90,
		MaxDoseRatio:     10.0,
		Fairness:         FairnessBoundedDiff,
		DiffCap:          0.9,
		EconWeight:       [NumGroups]float64{0.7, 0.8},
	}
}

// PriorityProfile favors the elderly group with tighter bounds and a
// dominance-style fairness constraint.
func PriorityProfile() ScenarioProfile {
	return ScenarioProfile{
		Name:             "priority",
		MinU1:            [NumGroups]float64{0.05, 0.03},
		MaxU1:            [NumGroups]float64{0.70, 0.80},
		MinU2:            [NumGroups]float64{0.05, 0.03},
		MaxU2:            [NumGroups]float64{0.70, 0.80},
		GroupShareFloor:  [NumGroups]float64{0.20, 0.20},
		ProducerShareMin: 0.10,
		ProducerShareMax: 0.90,
		MaxDoseRatio:     10.0,
		Fairness:         FairnessPriority,
		EconWeight:       [NumGroups]float64{0.7, 0.8},
	}
}

// Validate rejects profiles whose bounds cannot admit any solution.
func (pr ScenarioProfile) Validate() error {
	for g := 0; g < NumGroups; g++ {
		if pr.MinU1[g] < 0 || pr.MaxU1[g] > 1 || pr.MinU1[g] > pr.MaxU1[g] {
			return fmt.Errorf("profile %q: dose-1 bounds for group %d out of order", pr.Name, g+1)
		}
		if pr.MinU2[g] < 0 || pr.MaxU2[g] > 1 || pr.MinU2[g] > pr.MaxU2[g] {
			return fmt.Errorf("profile %q: dose-2 bounds for group %d out of order", pr.Name, g+1)
		}
		if pr.GroupShareFloor[g] < 0 || pr.GroupShareFloor[g] > 0.5 {
			return fmt.Errorf("profile %q: group share floor %.2f for group %d outside [0, 0.5]", pr.Name, pr.GroupShareFloor[g], g+1)
		}
	}
	if pr.ProducerShareMin < 0 || pr.ProducerShareMax > 1 || pr.ProducerShareMin > pr.ProducerShareMax {
		return fmt.Errorf("profile %q: producer share bounds out of order", pr.Name)
	}
	if pr.MaxDoseRatio <= 0 {
		return fmt.Errorf("profile %q: max dose ratio must be positive", pr.Name)
	}
	switch pr.Fairness {
	case FairnessBoundedDiff:
		if pr.DiffCap <= 0 {
			return fmt.Errorf("profile %q: bounded-diff fairness needs a positive diff cap", pr.Name)
		}
	case FairnessPriority:
	default:
		return fmt.Errorf("profile %q: unknown fairness kind %q", pr.Name, pr.Fairness)
	}
	return nil
}

// Problem is one immutable allocation instance. Every solve builds a fresh
// model from it; nothing here is mutated after construction, so a Problem is
// safe to share across goroutines.
type Problem struct {
	Series  Series
	Costs   CostParams
	Weights Weights
	Profile ScenarioProfile
	// Norms overrides the objective normalization constants when non-zero.
	Norms [3]float64
}

func (p Problem) norms() [3]float64 {
	if p.Norms[0] > 0 && p.Norms[1] > 0 && p.Norms[2] > 0 {
		return p.Norms
	}
	return [3]float64{normZ1, normZ2, normZ3}
}

// windowSum adds xs over the half-open day range [start, end).
func windowSum(xs []float64, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if end > len(xs) {
		end = len(xs)
	}
	total := 0.0
	for t := start; t < end; t++ {
		total += xs[t]
	}
	return total
}
