package opt

import "math"

// EquityMetrics are pure post-solve derivations: how the allocation splits
// across groups and how that split compares to group populations.
type EquityMetrics struct {
	Dose1Count              [NumGroups]float64 `json:"dose1Count"`
	Dose2Count              [NumGroups]float64 `json:"dose2Count"`
	EquityDiffDose1         float64            `json:"equityDiffDose1"`
	EquityDiffDose2         float64            `json:"equityDiffDose2"`
	PopulationEffectiveness float64            `json:"populationEffectiveness"`
}

// ComputeEquity derives allocation-fairness metrics from solved coverage
// fractions. Counts multiply coverage by the windowed eligible population;
// effectiveness is group 1's allocation share over its population share,
// capped at 1.
func ComputeEquity(s Series, t Timing, u1, u2 [NumGroups]float64) EquityMetrics {
	horizon := s.Horizon()
	var m EquityMetrics
	for g := 0; g < NumGroups; g++ {
		m.Dose1Count[g] = u1[g] * windowSum(s.S[g], t.Tau1[g], t.Tau2[g])
		m.Dose2Count[g] = u2[g] * windowSum(s.V1[g], t.Tau2[g], horizon)
	}
	m.EquityDiffDose1 = math.Abs(u1[0] - u1[1])
	m.EquityDiffDose2 = math.Abs(u2[0] - u2[1])

	totalDose1 := m.Dose1Count[0] + m.Dose1Count[1]
	popTotal := s.S[0][0] + s.S[1][0]
	if totalDose1 > 0 && popTotal > 0 && s.S[0][0] > 0 {
		popRatio := s.S[0][0] / popTotal
		allocRatio := m.Dose1Count[0] / totalDose1
		m.PopulationEffectiveness = math.Min(allocRatio/popRatio, 1.0)
	}
	return m
}
