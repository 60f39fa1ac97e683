package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"vaxalloc/internal/opt"
)

// ConfigError reports a missing or invalid configuration file. Like
// DataError it aborts the run.
type ConfigError struct {
	Reason  string
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("config: %s: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return "config: " + e.Reason
}

// requiredSearchKeys is the timing-search file contract.
var requiredSearchKeys = []string{
	"tau1_group1_min", "tau1_group1_max",
	"tau1_group2_min", "tau1_group2_max",
	"gap_group1_min", "gap_group1_max",
	"gap_group2_min", "gap_group2_max",
	"time_step",
}

// LoadSearchConfig reads a timing-search grid definition from its JSON file
// format.
func LoadSearchConfig(r io.Reader) (opt.SearchConfig, error) {
	var raw map[string]int
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return opt.SearchConfig{}, &ConfigError{Reason: fmt.Sprintf("decoding search config: %v", err)}
	}
	var missing []string
	for _, key := range requiredSearchKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return opt.SearchConfig{}, &ConfigError{Reason: "missing required keys", Missing: missing}
	}
	cfg := opt.SearchConfig{
		Tau1Min: [opt.NumGroups]int{raw["tau1_group1_min"], raw["tau1_group2_min"]},
		Tau1Max: [opt.NumGroups]int{raw["tau1_group1_max"], raw["tau1_group2_max"]},
		GapMin:  [opt.NumGroups]int{raw["gap_group1_min"], raw["gap_group2_min"]},
		GapMax:  [opt.NumGroups]int{raw["gap_group1_max"], raw["gap_group2_max"]},
		Step:    raw["time_step"],
	}
	if err := cfg.Validate(); err != nil {
		return opt.SearchConfig{}, &ConfigError{Reason: err.Error()}
	}
	return cfg, nil
}

// LoadSearchConfigFile is the path-based convenience wrapper.
func LoadSearchConfigFile(path string) (opt.SearchConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return opt.SearchConfig{}, &ConfigError{Reason: fmt.Sprintf("opening %s: %v", path, err)}
	}
	defer f.Close()
	return LoadSearchConfig(f)
}

type weightsFile struct {
	W1   *float64 `json:"w1"`
	W2   *float64 `json:"w2"`
	W3   *float64 `json:"w3"`
	Name string   `json:"name"`
}

func (wf weightsFile) toWeights() (opt.Weights, error) {
	if wf.W1 == nil || wf.W2 == nil || wf.W3 == nil {
		return opt.Weights{}, &ConfigError{Reason: "weights file needs w1, w2 and w3"}
	}
	w := opt.Weights{W1: *wf.W1, W2: *wf.W2, W3: *wf.W3, Name: wf.Name}
	if w.Name == "" {
		w.Name = fmt.Sprintf("custom (%.2f, %.2f, %.2f)", w.W1, w.W2, w.W3)
	}
	// Out-of-tolerance triples are rescaled and flagged, never silently
	// replaced by defaults.
	norm, err := w.Normalize()
	if err != nil {
		return opt.Weights{}, &ConfigError{Reason: err.Error()}
	}
	return norm, nil
}

// LoadWeights reads one objective-weight triple. The caller always receives
// a valid summing-to-1 triple or an error.
func LoadWeights(r io.Reader) (opt.Weights, error) {
	var wf weightsFile
	if err := json.NewDecoder(r).Decode(&wf); err != nil {
		return opt.Weights{}, &ConfigError{Reason: fmt.Sprintf("decoding weights: %v", err)}
	}
	return wf.toWeights()
}

// LoadWeightSets reads either a single triple or a list of triples, then
// appends the default comparison catalog with near-duplicates removed.
func LoadWeightSets(r io.Reader) ([]opt.Weights, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("reading weights: %v", err)}
	}
	var list []weightsFile
	if err := json.Unmarshal(data, &list); err != nil {
		var single weightsFile
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("decoding weight sets: %v", err)}
		}
		list = []weightsFile{single}
	}
	custom := make([]opt.Weights, 0, len(list))
	for _, wf := range list {
		w, err := wf.toWeights()
		if err != nil {
			return nil, err
		}
		custom = append(custom, w)
	}
	return opt.MergeWeightSets(custom), nil
}

// ScenarioCatalog is the YAML-configured set of scenario profiles a
// deployment offers, plus which one applies by default.
type ScenarioCatalog struct {
	Default  string                `yaml:"default" json:"default"`
	Profiles []opt.ScenarioProfile `yaml:"profiles" json:"profiles"`
}

// DefaultCatalog ships the two built-in variants.
func DefaultCatalog() ScenarioCatalog {
	return ScenarioCatalog{
		Default:  "flexible",
		Profiles: []opt.ScenarioProfile{opt.FlexibleProfile(), opt.PriorityProfile()},
	}
}

// LoadScenarioCatalog reads and validates a profile catalog.
func LoadScenarioCatalog(r io.Reader) (ScenarioCatalog, error) {
	var cat ScenarioCatalog
	if err := yaml.NewDecoder(r).Decode(&cat); err != nil {
		return ScenarioCatalog{}, &ConfigError{Reason: fmt.Sprintf("decoding scenario catalog: %v", err)}
	}
	if len(cat.Profiles) == 0 {
		return ScenarioCatalog{}, &ConfigError{Reason: "scenario catalog has no profiles"}
	}
	for _, pr := range cat.Profiles {
		if err := pr.Validate(); err != nil {
			return ScenarioCatalog{}, &ConfigError{Reason: err.Error()}
		}
	}
	if cat.Default == "" {
		cat.Default = cat.Profiles[0].Name
	}
	if _, ok := cat.Profile(cat.Default); !ok {
		return ScenarioCatalog{}, &ConfigError{Reason: fmt.Sprintf("default profile %q not in catalog", cat.Default)}
	}
	return cat, nil
}

// LoadScenarioCatalogFile loads the catalog from disk, falling back to the
// built-ins when no path is configured.
func LoadScenarioCatalogFile(path string) (ScenarioCatalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return ScenarioCatalog{}, &ConfigError{Reason: fmt.Sprintf("opening %s: %v", path, err)}
	}
	defer f.Close()
	return LoadScenarioCatalog(f)
}

// Profile looks a profile up by name.
func (c ScenarioCatalog) Profile(name string) (opt.ScenarioProfile, bool) {
	for _, pr := range c.Profiles {
		if pr.Name == name {
			return pr, true
		}
	}
	return opt.ScenarioProfile{}, false
}
