package opt

import (
	"math"
	"testing"
)

func TestWeightsNormalize(t *testing.T) {
	w, err := Weights{W1: 0.33, W2: 0.33, W3: 0.34, Name: "balanced"}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if w.Adjusted {
		t.Fatal("in-tolerance triple must not be flagged adjusted")
	}

	w, err = Weights{W1: 1, W2: 1, W3: 2}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !w.Adjusted {
		t.Fatal("rescaled triple must be flagged adjusted")
	}
	if math.Abs(w.Sum()-1) > WeightTolerance {
		t.Fatalf("sum = %v after normalize", w.Sum())
	}
	if math.Abs(w.W3-0.5) > 1e-12 {
		t.Fatalf("w3 = %v, want 0.5", w.W3)
	}

	if _, err := (Weights{W1: -0.5, W2: 1, W3: 0.5}).Normalize(); err == nil {
		t.Fatal("negative weight must be rejected")
	}
	if _, err := (Weights{}).Normalize(); err == nil {
		t.Fatal("zero-sum triple must be rejected")
	}
}

func TestWeightsValid(t *testing.T) {
	if !BalancedWeights().Valid() {
		t.Fatal("balanced weights should be valid")
	}
	if (Weights{W1: 0.5, W2: 0.5, W3: 0.1}).Valid() {
		t.Fatal("sum 1.1 should be invalid")
	}
	if (Weights{W1: 1.2, W2: -0.2, W3: 0}).Valid() {
		t.Fatal("out-of-range weights should be invalid")
	}
}

func TestMergeWeightSetsDeduplicates(t *testing.T) {
	custom := []Weights{
		{W1: 0.33, W2: 0.33, W3: 0.34, Name: "mine"}, // duplicates balanced
		{W1: 0.5, W2: 0.25, W3: 0.25, Name: "split"},
	}
	merged := MergeWeightSets(custom)
	if len(merged) != 5 {
		t.Fatalf("merged %d sets, want 5 (2 custom + 3 non-duplicate defaults)", len(merged))
	}
	if merged[0].Name != "mine" {
		t.Fatalf("custom sets must come first, got %q", merged[0].Name)
	}
	for i, w := range merged {
		for j := i + 1; j < len(merged); j++ {
			if w.nearlyEqual(merged[j]) {
				t.Fatalf("sets %d and %d are near-duplicates", i, j)
			}
		}
	}
}
