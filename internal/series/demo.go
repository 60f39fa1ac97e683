package series

import "vaxalloc/internal/opt"

// Demo builds a deterministic synthetic scenario: two groups of 10000 with a
// triangular infection wave peaking mid-horizon. Used by dev mode and tests
// when no series has been uploaded.
func Demo(horizon int) opt.Series {
	var s opt.Series
	for g := 0; g < opt.NumGroups; g++ {
		pop := 10000.0
		peak := 400.0 + 100.0*float64(g)
		for t := 0; t < horizon; t++ {
			frac := float64(t) / float64(horizon-1)
			wave := 1 - 2*abs(frac-0.5)
			infected := peak * wave
			quarantined := infected * 0.3
			dose1 := pop * 0.02 * frac
			dose2 := pop * 0.01 * frac
			recovered := pop * 0.2 * frac
			susceptible := pop - infected - quarantined - dose1 - dose2 - recovered
			s.S[g] = append(s.S[g], susceptible)
			s.I[g] = append(s.I[g], infected)
			s.Q[g] = append(s.Q[g], quarantined)
			s.V1[g] = append(s.V1[g], dose1)
			s.V2[g] = append(s.V2[g], dose2)
			s.R[g] = append(s.R[g], recovered)
		}
	}
	return s
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
