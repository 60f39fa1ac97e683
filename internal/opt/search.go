package opt

import (
	"context"
	"errors"
	"fmt"
)

// SearchConfig bounds the timing grid: per-group dose-1 start ranges,
// per-group dose gaps, and one shared step size.
type SearchConfig struct {
	Tau1Min [NumGroups]int `json:"tau1Min"`
	Tau1Max [NumGroups]int `json:"tau1Max"`
	GapMin  [NumGroups]int `json:"gapMin"`
	GapMax  [NumGroups]int `json:"gapMax"`
	Step    int            `json:"step"`
}

// DefaultSearchConfig is the baseline grid used when no config is supplied.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Tau1Min: [NumGroups]int{25, 30},
		Tau1Max: [NumGroups]int{40, 45},
		GapMin:  [NumGroups]int{40, 40},
		GapMax:  [NumGroups]int{60, 60},
		Step:    5,
	}
}

// Validate rejects empty or backwards grids.
func (c SearchConfig) Validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("search step must be positive, got %d", c.Step)
	}
	for g := 0; g < NumGroups; g++ {
		if c.Tau1Min[g] < 0 || c.Tau1Min[g] > c.Tau1Max[g] {
			return fmt.Errorf("group %d: tau1 range [%d, %d] out of order", g+1, c.Tau1Min[g], c.Tau1Max[g])
		}
		if c.GapMin[g] <= 0 || c.GapMin[g] > c.GapMax[g] {
			return fmt.Errorf("group %d: gap range [%d, %d] out of order", g+1, c.GapMin[g], c.GapMax[g])
		}
	}
	return nil
}

// SearchMetrics counts what the grid traversal did. Solves only counts
// points that actually reached the solver.
type SearchMetrics struct {
	Points        int     `json:"points"`
	Skipped       int     `json:"skipped"`
	Solves        int     `json:"solves"`
	Feasible      int     `json:"feasible"`
	Improvements  int     `json:"improvements"`
	BestObjective float64 `json:"bestObjective"`
}

// SearchOutcome is the terminal state of one grid search. Found is false
// when every in-bounds point failed to solve, which is a legitimate outcome,
// not an error.
type SearchOutcome struct {
	Found   bool          `json:"found"`
	Best    Timing        `json:"best"`
	Result  Result        `json:"result"`
	Metrics SearchMetrics `json:"metrics"`
}

// Progress is invoked after each grid point with the running counts. best is
// nil until a feasible point has been seen.
type Progress func(done, total int, best *Result)

// RunSearch walks the full (tau1_1, tau2_1, tau1_2, tau2_2) grid in a fixed
// order, solving one fresh LP per point and keeping the first strict minimum.
// Points whose tau2 lands beyond the series horizon are skipped without
// solving. Ties keep the earlier point, so the traversal order is the
// tie-break.
func RunSearch(ctx context.Context, p Problem, cfg SearchConfig, solve SolveFunc, progress Progress) (SearchOutcome, error) {
	if err := cfg.Validate(); err != nil {
		return SearchOutcome{}, err
	}
	if solve == nil {
		solve = Solve
	}
	horizon := p.Series.Horizon()
	total := countGridPoints(cfg, horizon)

	out := SearchOutcome{}
	out.Metrics.BestObjective = InfeasibleCost
	done := 0

	report := func() {
		if progress == nil {
			return
		}
		if out.Found {
			progress(done, total, &out.Result)
		} else {
			progress(done, total, nil)
		}
	}

	err := walkGrid(cfg, horizon, func(t Timing, inBounds bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Metrics.Points++
		done++
		if !inBounds {
			out.Metrics.Skipped++
			report()
			return nil
		}
		out.Metrics.Solves++
		res, err := solve(p, t)
		if err != nil {
			if errors.Is(err, ErrNotOptimal) {
				report()
				return nil
			}
			return err
		}
		out.Metrics.Feasible++
		if res.Combined < out.Metrics.BestObjective {
			out.Metrics.BestObjective = res.Combined
			out.Metrics.Improvements++
			out.Found = true
			out.Best = t
			out.Result = res
		}
		report()
		return nil
	})
	if err != nil {
		return SearchOutcome{}, err
	}
	return out, nil
}

// walkGrid enumerates every grid point in deterministic order. Points with
// tau2 >= horizon are reported with inBounds false so callers can count them
// without building a model.
func walkGrid(cfg SearchConfig, horizon int, visit func(t Timing, inBounds bool) error) error {
	for tau11 := cfg.Tau1Min[0]; tau11 <= cfg.Tau1Max[0]; tau11 += cfg.Step {
		for tau21 := tau11 + cfg.GapMin[0]; tau21 <= tau11+cfg.GapMax[0]; tau21 += cfg.Step {
			for tau12 := cfg.Tau1Min[1]; tau12 <= cfg.Tau1Max[1]; tau12 += cfg.Step {
				for tau22 := tau12 + cfg.GapMin[1]; tau22 <= tau12+cfg.GapMax[1]; tau22 += cfg.Step {
					t := Timing{
						Tau1: [NumGroups]int{tau11, tau12},
						Tau2: [NumGroups]int{tau21, tau22},
					}
					inBounds := tau21 < horizon && tau22 < horizon
					if err := visit(t, inBounds); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func countGridPoints(cfg SearchConfig, horizon int) int {
	n := 0
	_ = walkGrid(cfg, horizon, func(Timing, bool) error {
		n++
		return nil
	})
	return n
}

// SensitivityConfig sweeps a shared dose-1 start across both groups, with
// tau2 derived from it. Group 2's second dose leads group 1's by a fixed
// number of days.
type SensitivityConfig struct {
	Tau1Min         int `json:"tau1Min"`
	Tau1Max         int `json:"tau1Max"`
	Tau1Step        int `json:"tau1Step"`
	Tau2Base        int `json:"tau2Base"`
	GapFloor        int `json:"gapFloor"`
	Group2Dose2Lead int `json:"group2Dose2Lead"`
}

// DefaultSensitivityConfig matches the baseline scenario sweep.
func DefaultSensitivityConfig() SensitivityConfig {
	return SensitivityConfig{
		Tau1Min:         30,
		Tau1Max:         50,
		Tau1Step:        3,
		Tau2Base:        80,
		GapFloor:        45,
		Group2Dose2Lead: 5,
	}
}

// SensitivityPoint is one solved sweep sample with the raw objective split
// kept for component analysis.
type SensitivityPoint struct {
	Tau1     int     `json:"tau1"`
	Timing   Timing  `json:"timing"`
	Combined float64 `json:"combined"`
	Z1       float64 `json:"z1"`
	Z2       float64 `json:"z2"`
	Z3       float64 `json:"z3"`
}

// SensitivitySweep rebuilds and resolves along the shared-tau1 axis. Points
// that fail to solve are dropped; the sweep never touches a search's best
// state.
func SensitivitySweep(ctx context.Context, p Problem, cfg SensitivityConfig, solve SolveFunc) ([]SensitivityPoint, error) {
	if cfg.Tau1Step <= 0 {
		return nil, fmt.Errorf("sensitivity step must be positive, got %d", cfg.Tau1Step)
	}
	if solve == nil {
		solve = Solve
	}
	horizon := p.Series.Horizon()
	points := make([]SensitivityPoint, 0)
	for tau1 := cfg.Tau1Min; tau1 <= cfg.Tau1Max; tau1 += cfg.Tau1Step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tau2 := max(tau1+cfg.GapFloor, cfg.Tau2Base)
		t := Timing{
			Tau1: [NumGroups]int{tau1, tau1},
			Tau2: [NumGroups]int{tau2, tau2 - cfg.Group2Dose2Lead},
		}
		if t.Tau2[0] >= horizon || t.Tau2[1] >= horizon || t.Tau2[1] <= tau1 {
			continue
		}
		res, err := solve(p, t)
		if err != nil {
			if errors.Is(err, ErrNotOptimal) {
				continue
			}
			return nil, err
		}
		points = append(points, SensitivityPoint{
			Tau1:     tau1,
			Timing:   t,
			Combined: res.Combined,
			Z1:       res.Z1,
			Z2:       res.Z2,
			Z3:       res.Z3,
		})
	}
	return points, nil
}

// CostMatrixConfig spans a rectangular tau1 x tau2 grid. Cells with too
// small a dose gap are invalid without solving.
type CostMatrixConfig struct {
	Tau1Min         int `json:"tau1Min"`
	Tau1Max         int `json:"tau1Max"`
	Tau1Step        int `json:"tau1Step"`
	Tau2Min         int `json:"tau2Min"`
	Tau2Max         int `json:"tau2Max"`
	Tau2Step        int `json:"tau2Step"`
	MinGap          int `json:"minGap"`
	Group2Dose2Lead int `json:"group2Dose2Lead"`
}

// DefaultCostMatrixConfig matches the baseline timing heat map.
func DefaultCostMatrixConfig() CostMatrixConfig {
	return CostMatrixConfig{
		Tau1Min:         30,
		Tau1Max:         45,
		Tau1Step:        3,
		Tau2Min:         75,
		Tau2Max:         125,
		Tau2Step:        8,
		MinGap:          40,
		Group2Dose2Lead: 5,
	}
}

// CostMatrix holds one objective value per (tau2 row, tau1 column). Invalid
// or infeasible cells carry the +Inf sentinel.
type CostMatrix struct {
	Tau1Values []int       `json:"tau1Values"`
	Tau2Values []int       `json:"tau2Values"`
	Cost       [][]float64 `json:"cost"`
}

// CostMatrixSweep fills the timing cost matrix, one rebuild+solve per valid
// cell.
func CostMatrixSweep(ctx context.Context, p Problem, cfg CostMatrixConfig, solve SolveFunc) (CostMatrix, error) {
	if cfg.Tau1Step <= 0 || cfg.Tau2Step <= 0 {
		return CostMatrix{}, fmt.Errorf("cost matrix steps must be positive")
	}
	if solve == nil {
		solve = Solve
	}
	horizon := p.Series.Horizon()

	m := CostMatrix{}
	for tau1 := cfg.Tau1Min; tau1 <= cfg.Tau1Max; tau1 += cfg.Tau1Step {
		m.Tau1Values = append(m.Tau1Values, tau1)
	}
	for tau2 := cfg.Tau2Min; tau2 <= cfg.Tau2Max; tau2 += cfg.Tau2Step {
		m.Tau2Values = append(m.Tau2Values, tau2)
	}

	for _, tau2 := range m.Tau2Values {
		row := make([]float64, 0, len(m.Tau1Values))
		for _, tau1 := range m.Tau1Values {
			if err := ctx.Err(); err != nil {
				return CostMatrix{}, err
			}
			if tau2 <= tau1+cfg.MinGap || tau2 >= horizon || tau2-cfg.Group2Dose2Lead <= tau1 {
				row = append(row, InfeasibleCost)
				continue
			}
			t := Timing{
				Tau1: [NumGroups]int{tau1, tau1},
				Tau2: [NumGroups]int{tau2, tau2 - cfg.Group2Dose2Lead},
			}
			res, err := solve(p, t)
			if err != nil {
				if errors.Is(err, ErrNotOptimal) {
					row = append(row, InfeasibleCost)
					continue
				}
				return CostMatrix{}, err
			}
			row = append(row, res.Combined)
		}
		m.Cost = append(m.Cost, row)
	}
	return m, nil
}

// WeightComparison pairs one weight triple with its solved allocation.
type WeightComparison struct {
	Weights Weights `json:"weights"`
	Result  Result  `json:"result"`
	Solved  bool    `json:"solved"`
}

// CompareWeights resolves the same problem under each weight triple in
// order. Triples that fail to solve stay in the table unsolved so the
// comparison keeps its shape.
func CompareWeights(ctx context.Context, p Problem, t Timing, sets []Weights, solve SolveFunc) ([]WeightComparison, error) {
	if solve == nil {
		solve = Solve
	}
	out := make([]WeightComparison, 0, len(sets))
	for _, w := range sets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		norm, err := w.Normalize()
		if err != nil {
			return nil, err
		}
		q := p
		q.Weights = norm
		res, err := solve(q, t)
		if err != nil {
			if errors.Is(err, ErrNotOptimal) {
				out = append(out, WeightComparison{Weights: norm})
				continue
			}
			return nil, err
		}
		out = append(out, WeightComparison{Weights: norm, Result: res, Solved: true})
	}
	return out, nil
}
