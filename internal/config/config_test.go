package config

import (
	"errors"
	"math"
	"strings"
	"testing"

	"vaxalloc/internal/opt"
)

func TestLoadSearchConfig(t *testing.T) {
	src := `{
        "tau1_group1_min": 25, "tau1_group1_max": 40,
        "tau1_group2_min": 30, "tau1_group2_max": 45,
        "gap_group1_min": 40, "gap_group1_max": 60,
        "gap_group2_min": 40, "gap_group2_max": 60,
        "time_step": 5
    }`
	cfg, err := LoadSearchConfig(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tau1Min != [opt.NumGroups]int{25, 30} || cfg.Tau1Max != [opt.NumGroups]int{40, 45} {
		t.Fatalf("tau1 ranges misread: %+v", cfg)
	}
	if cfg.Step != 5 {
		t.Fatalf("step = %d, want 5", cfg.Step)
	}
}

func TestLoadSearchConfigMissingKeys(t *testing.T) {
	src := `{"tau1_group1_min": 25, "time_step": 5}`
	_, err := LoadSearchConfig(strings.NewReader(src))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if len(ce.Missing) != 7 {
		t.Fatalf("missing = %v, want the 7 absent keys", ce.Missing)
	}
}

func TestLoadWeightsRenormalizes(t *testing.T) {
	w, err := LoadWeights(strings.NewReader(`{"w1": 1, "w2": 1, "w3": 2}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !w.Adjusted {
		t.Fatal("out-of-tolerance triple must be flagged adjusted")
	}
	if math.Abs(w.Sum()-1) > opt.WeightTolerance {
		t.Fatalf("sum = %v after load", w.Sum())
	}

	w, err = LoadWeights(strings.NewReader(`{"w1": 0.33, "w2": 0.33, "w3": 0.34, "name": "balanced"}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.Adjusted || w.Name != "balanced" {
		t.Fatalf("unexpected result: %+v", w)
	}

	if _, err := LoadWeights(strings.NewReader(`{"w1": 0.5}`)); err == nil {
		t.Fatal("incomplete triple must fail")
	}
	if _, err := LoadWeights(strings.NewReader(`not json`)); err == nil {
		t.Fatal("garbage must fail")
	}
}

func TestLoadWeightSets(t *testing.T) {
	// A single object becomes the head of the merged catalog.
	sets, err := LoadWeightSets(strings.NewReader(`{"w1": 0.5, "w2": 0.25, "w3": 0.25, "name": "mine"}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sets[0].Name != "mine" {
		t.Fatalf("custom set must come first, got %q", sets[0].Name)
	}
	if len(sets) != 5 {
		t.Fatalf("sets = %d, want 1 custom + 4 defaults", len(sets))
	}

	// A list that duplicates a default keeps the catalog deduplicated.
	sets, err = LoadWeightSets(strings.NewReader(`[{"w1": 0.33, "w2": 0.33, "w3": 0.34}]`))
	if err != nil {
		t.Fatalf("load list: %v", err)
	}
	if len(sets) != 4 {
		t.Fatalf("sets = %d, want 4 after dedup", len(sets))
	}
}

func TestLoadScenarioCatalog(t *testing.T) {
	src := `
default: strict
profiles:
  - name: strict
    minU1: [0.1, 0.1]
    maxU1: [0.8, 0.8]
    minU2: [0.1, 0.1]
    maxU2: [0.8, 0.8]
    groupShareFloor: [0.25, 0.25]
    producerShareMin: 0.2
    producerShareMax: 0.8
    maxDoseRatio: 3
    fairness: bounded-diff
    diffCap: 0.5
    econWeight: [0.7, 0.8]
`
	cat, err := LoadScenarioCatalog(strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pr, ok := cat.Profile("strict")
	if !ok {
		t.Fatal("profile lookup failed")
	}
	if pr.DiffCap != 0.5 || pr.Fairness != opt.FairnessBoundedDiff {
		t.Fatalf("profile misread: %+v", pr)
	}
}

func TestLoadScenarioCatalogRejectsBadProfiles(t *testing.T) {
	cases := []string{
		"profiles: []",
		"default: ghost\nprofiles:\n  - name: flexible\n    minU1: [0.05, 0.05]\n    maxU1: [0.95, 0.95]\n    minU2: [0.05, 0.05]\n    maxU2: [0.95, 0.95]\n    groupShareFloor: [0.2, 0.2]\n    producerShareMin: 0.1\n    producerShareMax: 0.9\n    maxDoseRatio: 10\n    fairness: bounded-diff\n    diffCap: 0.9\n    econWeight: [0.7, 0.8]\n",
		"profiles:\n  - name: broken\n    minU1: [0.9, 0.9]\n    maxU1: [0.1, 0.1]\n",
	}
	for i, src := range cases {
		if _, err := LoadScenarioCatalog(strings.NewReader(src)); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestDefaultCatalogValid(t *testing.T) {
	cat := DefaultCatalog()
	for _, pr := range cat.Profiles {
		if err := pr.Validate(); err != nil {
			t.Fatalf("built-in profile %q invalid: %v", pr.Name, err)
		}
	}
	if _, ok := cat.Profile(cat.Default); !ok {
		t.Fatal("default profile missing from catalog")
	}
}
