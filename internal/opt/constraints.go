package opt

import (
	"fmt"
	"math"
)

// Row is one linear constraint: Lower <= Coef . x <= Upper.
type Row struct {
	Lower float64
	Coef  []float64
	Upper float64
	Name  string
}

// columnBounds returns per-column lower/upper bounds. Coverage bounds come
// straight from the scenario profile; producer quantities are capped by the
// capacity row, not per column.
func columnBounds(pr ScenarioProfile) (lower, upper []float64) {
	n := numCols(pr)
	lower = make([]float64, n)
	upper = make([]float64, n)
	for g := 0; g < NumGroups; g++ {
		lower[colU1(g)] = pr.MinU1[g]
		upper[colU1(g)] = pr.MaxU1[g]
		lower[colU2(g)] = pr.MinU2[g]
		upper[colU2(g)] = pr.MaxU2[g]
	}
	for i := 0; i < NumProducers; i++ {
		lower[colVP(i)] = 0
		upper[colVP(i)] = math.Inf(1)
	}
	if pr.Fairness == FairnessBoundedDiff {
		lower[colDiff] = 0
		upper[colDiff] = pr.DiffCap
	}
	return lower, upper
}

// demandCoef returns the per-group vaccine demand as an expression over the
// coverage columns: dose-1 demand draws on susceptibles between the doses,
// dose-2 demand on dose-1 recipients after tau2.
func demandCoef(p Problem, t Timing, g int) LinExpr {
	horizon := p.Series.Horizon()
	e := newExpr(numCols(p.Profile))
	e.Coef[colU1(g)] = windowSum(p.Series.S[g], t.Tau1[g], t.Tau2[g])
	e.Coef[colU2(g)] = windowSum(p.Series.V1[g], t.Tau2[g], horizon)
	return e
}

// BuildConstraints emits the full feasible region for one timing
// configuration.
func BuildConstraints(p Problem, t Timing) ([]Row, error) {
	if err := t.Validate(p.Series.Horizon()); err != nil {
		return nil, err
	}
	if err := p.Profile.Validate(); err != nil {
		return nil, err
	}

	n := numCols(p.Profile)
	inf := math.Inf(1)
	rows := make([]Row, 0, 16)

	addRow := func(name string, lower, upper float64, set func(coef []float64)) {
		coef := make([]float64, n)
		set(coef)
		rows = append(rows, Row{Lower: lower, Coef: coef, Upper: upper, Name: name})
	}

	demand := [NumGroups]LinExpr{}
	for g := 0; g < NumGroups; g++ {
		demand[g] = demandCoef(p, t, g)
	}

	// Each group's demand must claim at least its floor share of the total.
	for g := 0; g < NumGroups; g++ {
		g := g
		floor := p.Profile.GroupShareFloor[g]
		addRow(fmt.Sprintf("min_share_group%d", g+1), 0, inf, func(coef []float64) {
			for o := 0; o < NumGroups; o++ {
				k := -floor
				if o == g {
					k = 1 - floor
				}
				for i, c := range demand[o].Coef {
					coef[i] += k * c
				}
			}
		})
	}

	// Demand/supply balance and production capacity.
	addRow("supply_balance", -inf, 0, func(coef []float64) {
		for g := 0; g < NumGroups; g++ {
			for i, c := range demand[g].Coef {
				coef[i] += c
			}
		}
		for i := 0; i < NumProducers; i++ {
			coef[colVP(i)] -= 1
		}
	})
	addRow("capacity", -inf, p.Costs.L, func(coef []float64) {
		for i := 0; i < NumProducers; i++ {
			coef[colVP(i)] = 1
		}
	})

	// Second doses cannot exceed first doses.
	for g := 0; g < NumGroups; g++ {
		g := g
		addRow(fmt.Sprintf("dose_order_group%d", g+1), -inf, 0, func(coef []float64) {
			coef[colU2(g)] = 1
			coef[colU1(g)] = -1
		})
	}

	// Producer share bounds on total production.
	for i := 0; i < NumProducers; i++ {
		i := i
		addRow(fmt.Sprintf("min_producer%d", i+1), 0, inf, func(coef []float64) {
			for o := 0; o < NumProducers; o++ {
				coef[colVP(o)] = -p.Profile.ProducerShareMin
			}
			coef[colVP(i)] += 1
		})
		addRow(fmt.Sprintf("max_producer%d", i+1), -inf, 0, func(coef []float64) {
			for o := 0; o < NumProducers; o++ {
				coef[colVP(o)] = -p.Profile.ProducerShareMax
			}
			coef[colVP(i)] += 1
		})
	}

	// Group-2 coverage may not outrun group 1 by more than the ratio cap.
	addRow("dose1_ratio", -inf, 0, func(coef []float64) {
		coef[colU1G2] = 1
		coef[colU1G1] = -p.Profile.MaxDoseRatio
	})
	addRow("dose2_ratio", -inf, 0, func(coef []float64) {
		coef[colU2G2] = 1
		coef[colU2G1] = -p.Profile.MaxDoseRatio
	})

	switch p.Profile.Fairness {
	case FairnessBoundedDiff:
		// |total coverage difference| <= diff, with diff capped by its
		// column bound.
		addRow("diff_upper", -inf, 0, func(coef []float64) {
			coef[colU1G2] = 1
			coef[colU2G2] = 1
			coef[colU1G1] = -1
			coef[colU2G1] = -1
			coef[colDiff] = -1
		})
		addRow("diff_lower", -inf, 0, func(coef []float64) {
			coef[colU1G1] = 1
			coef[colU2G1] = 1
			coef[colU1G2] = -1
			coef[colU2G2] = -1
			coef[colDiff] = -1
		})
	case FairnessPriority:
		// Group 1 dominates per dose, and neither group doubles the other.
		addRow("dose1_dominance", 0, inf, func(coef []float64) {
			coef[colU1G1] = 1
			coef[colU1G2] = -1
		})
		addRow("dose2_dominance", 0, inf, func(coef []float64) {
			coef[colU2G1] = 1
			coef[colU2G2] = -1
		})
		addRow("dose1_balance", -inf, 0, func(coef []float64) {
			coef[colU1G1] = 1
			coef[colU1G2] = -2
		})
		addRow("dose2_balance", -inf, 0, func(coef []float64) {
			coef[colU2G1] = 1
			coef[colU2G2] = -2
		})
	}

	return rows, nil
}
