package opt

import (
	"fmt"
	"math"
)

// WeightTolerance is how far w1+w2+w3 may drift from 1 before the triple is
// renormalized (loaders) or rejected (the objective builder).
const WeightTolerance = 1e-4

// Weights scalarizes the three cost objectives.
type Weights struct {
	W1 float64 `json:"w1"`
	W2 float64 `json:"w2"`
	W3 float64 `json:"w3"`
	// Name labels the triple in reports and comparison tables.
	Name string `json:"name,omitempty"`
	// Adjusted is set when the loader had to renormalize the triple.
	Adjusted bool `json:"adjusted,omitempty"`
}

// BalancedWeights is the default scalarization.
func BalancedWeights() Weights {
	return Weights{W1: 0.33, W2: 0.33, W3: 0.34, Name: "balanced"}
}

// Sum returns w1+w2+w3.
func (w Weights) Sum() float64 { return w.W1 + w.W2 + w.W3 }

// Valid reports whether each weight lies in [0,1] and the triple sums to 1
// within tolerance.
func (w Weights) Valid() bool {
	for _, v := range []float64{w.W1, w.W2, w.W3} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return math.Abs(w.Sum()-1) <= WeightTolerance
}

// Normalize returns a triple scaled to sum to 1. A triple already within
// tolerance is returned unchanged; otherwise the result is flagged Adjusted.
// Non-positive sums cannot be rescaled and produce an error.
func (w Weights) Normalize() (Weights, error) {
	for _, v := range []float64{w.W1, w.W2, w.W3} {
		if v < 0 {
			return Weights{}, fmt.Errorf("weight %v is negative", v)
		}
	}
	sum := w.Sum()
	if sum <= 0 {
		return Weights{}, fmt.Errorf("weights sum to %v, nothing to normalize", sum)
	}
	if math.Abs(sum-1) <= WeightTolerance {
		return w, nil
	}
	out := Weights{W1: w.W1 / sum, W2: w.W2 / sum, W3: w.W3 / sum, Name: w.Name, Adjusted: true}
	return out, nil
}

// nearlyEqual compares two triples within the catalog dedup tolerance.
func (w Weights) nearlyEqual(o Weights) bool {
	const eps = 0.01
	return math.Abs(w.W1-o.W1) < eps && math.Abs(w.W2-o.W2) < eps && math.Abs(w.W3-o.W3) < eps
}

// DefaultWeightCatalog is the comparison set: balanced plus one strong
// emphasis per objective.
func DefaultWeightCatalog() []Weights {
	return []Weights{
		{W1: 0.33, W2: 0.33, W3: 0.34, Name: "balanced"},
		{W1: 0.8, W2: 0.1, W3: 0.1, Name: "supply emphasis"},
		{W1: 0.1, W2: 0.8, W3: 0.1, Name: "social emphasis"},
		{W1: 0.1, W2: 0.1, W3: 0.8, Name: "economic emphasis"},
	}
}

// MergeWeightSets appends the default catalog to the custom sets, dropping
// near-duplicates so comparison runs never solve the same point twice.
func MergeWeightSets(custom []Weights) []Weights {
	out := make([]Weights, 0, len(custom)+4)
	for _, w := range custom {
		if !containsWeights(out, w) {
			out = append(out, w)
		}
	}
	for _, w := range DefaultWeightCatalog() {
		if !containsWeights(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func containsWeights(ws []Weights, w Weights) bool {
	for _, o := range ws {
		if o.nearlyEqual(w) {
			return true
		}
	}
	return false
}
