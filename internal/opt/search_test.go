package opt

import (
	"context"
	"math"
	"testing"
)

// fakeSolve returns preset objectives in call order without touching a
// solver.
func fakeSolve(objectives []float64) (SolveFunc, *int) {
	calls := 0
	fn := func(p Problem, t Timing) (Result, error) {
		if calls >= len(objectives) {
			calls++
			return Result{}, &StatusError{Status: StatusInfeasible}
		}
		obj := objectives[calls]
		calls++
		if math.IsInf(obj, 1) {
			return Result{}, &StatusError{Status: StatusInfeasible}
		}
		return Result{Timing: t, Combined: obj}, nil
	}
	return fn, &calls
}

func TestSearchSkipsOutOfHorizonPoints(t *testing.T) {
	p := testProblem(50)
	// tau2 candidates are 40, 50, 60 per group; only 40 is inside the
	// 50-day horizon, so exactly one of the nine grid points may solve.
	cfg := SearchConfig{
		Tau1Min: [NumGroups]int{10, 10},
		Tau1Max: [NumGroups]int{10, 10},
		GapMin:  [NumGroups]int{30, 30},
		GapMax:  [NumGroups]int{50, 50},
		Step:    10,
	}
	solve, calls := fakeSolve([]float64{2.0})
	out, err := RunSearch(context.Background(), p, cfg, solve, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.Metrics.Points != 9 {
		t.Fatalf("points = %d, want 9", out.Metrics.Points)
	}
	if out.Metrics.Skipped != 8 {
		t.Fatalf("skipped = %d, want 8", out.Metrics.Skipped)
	}
	if *calls != 1 || out.Metrics.Solves != 1 {
		t.Fatalf("solver invoked %d times (metrics %d), want 1", *calls, out.Metrics.Solves)
	}
	if !out.Found || out.Best.Tau2 != [NumGroups]int{40, 40} {
		t.Fatalf("best = %+v, want tau2 [40 40]", out.Best)
	}
}

func TestSearchKeepsFirstMinimum(t *testing.T) {
	p := testProblem(100)
	// One free dimension: tau2 for group 2 walks 30, 40, 50 in order.
	cfg := SearchConfig{
		Tau1Min: [NumGroups]int{10, 10},
		Tau1Max: [NumGroups]int{10, 10},
		GapMin:  [NumGroups]int{20, 20},
		GapMax:  [NumGroups]int{20, 40},
		Step:    10,
	}
	solve, _ := fakeSolve([]float64{5.0, 3.0, 3.0})
	out, err := RunSearch(context.Background(), p, cfg, solve, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !out.Found {
		t.Fatal("expected a best result")
	}
	// The tie between the second and third point must resolve to the
	// earlier one.
	if out.Best.Tau2[1] != 40 {
		t.Fatalf("best tau2_2 = %d, want 40 (second grid point)", out.Best.Tau2[1])
	}
	if out.Metrics.Improvements != 2 {
		t.Fatalf("improvements = %d, want 2", out.Metrics.Improvements)
	}
	if out.Metrics.BestObjective != 3.0 {
		t.Fatalf("best objective = %v, want 3.0", out.Metrics.BestObjective)
	}
}

func TestSearchNoFeasibleTiming(t *testing.T) {
	p := testProblem(100)
	cfg := SearchConfig{
		Tau1Min: [NumGroups]int{10, 10},
		Tau1Max: [NumGroups]int{20, 20},
		GapMin:  [NumGroups]int{20, 20},
		GapMax:  [NumGroups]int{30, 30},
		Step:    10,
	}
	solve := func(Problem, Timing) (Result, error) {
		return Result{}, &StatusError{Status: StatusInfeasible}
	}
	out, err := RunSearch(context.Background(), p, cfg, solve, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.Found {
		t.Fatal("found a result despite every point being infeasible")
	}
	if out.Metrics.Feasible != 0 {
		t.Fatalf("feasible = %d, want 0", out.Metrics.Feasible)
	}
	if out.Metrics.Solves == 0 {
		t.Fatal("expected the driver to attempt solves")
	}
}

func TestSearchProgressReachesTotal(t *testing.T) {
	p := testProblem(100)
	cfg := SearchConfig{
		Tau1Min: [NumGroups]int{10, 10},
		Tau1Max: [NumGroups]int{10, 10},
		GapMin:  [NumGroups]int{20, 20},
		GapMax:  [NumGroups]int{40, 40},
		Step:    10,
	}
	solve, _ := fakeSolve([]float64{4, 3, 2, 1, 2, 3, 4, 5, 6})
	var lastDone, lastTotal int
	_, err := RunSearch(context.Background(), p, cfg, solve, func(done, total int, _ *Result) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if lastDone != lastTotal || lastTotal != 9 {
		t.Fatalf("progress ended at %d/%d, want 9/9", lastDone, lastTotal)
	}
}

func TestSearchCancellation(t *testing.T) {
	p := testProblem(100)
	cfg := SearchConfig{
		Tau1Min: [NumGroups]int{10, 10},
		Tau1Max: [NumGroups]int{40, 40},
		GapMin:  [NumGroups]int{20, 20},
		GapMax:  [NumGroups]int{40, 40},
		Step:    10,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	solve, calls := fakeSolve(nil)
	if _, err := RunSearch(ctx, p, cfg, solve, nil); err == nil {
		t.Fatal("expected context error")
	}
	if *calls != 0 {
		t.Fatalf("solver invoked %d times after cancellation", *calls)
	}
}

func TestSearchConfigValidate(t *testing.T) {
	bad := []SearchConfig{
		{Step: 0},
		{Step: 5, Tau1Min: [NumGroups]int{20, 10}, Tau1Max: [NumGroups]int{10, 40}, GapMin: [NumGroups]int{40, 40}, GapMax: [NumGroups]int{60, 60}},
		{Step: 5, Tau1Min: [NumGroups]int{10, 10}, Tau1Max: [NumGroups]int{40, 40}, GapMin: [NumGroups]int{60, 40}, GapMax: [NumGroups]int{40, 60}},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if err := DefaultSearchConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSensitivitySweepDerivesTiming(t *testing.T) {
	p := testProblem(200)
	cfg := DefaultSensitivityConfig()
	var seen []Timing
	solve := func(_ Problem, tm Timing) (Result, error) {
		seen = append(seen, tm)
		return Result{Timing: tm, Combined: 1}, nil
	}
	points, err := SensitivitySweep(context.Background(), p, cfg, solve)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("points = %d, want 7 (tau1 30..48 step 3)", len(points))
	}
	for _, tm := range seen {
		if tm.Tau1[0] != tm.Tau1[1] {
			t.Fatalf("groups must share tau1: %+v", tm)
		}
		if want := max(tm.Tau1[0]+cfg.GapFloor, cfg.Tau2Base); tm.Tau2[0] != want {
			t.Fatalf("tau2_1 = %d, want %d", tm.Tau2[0], want)
		}
		if tm.Tau2[1] != tm.Tau2[0]-cfg.Group2Dose2Lead {
			t.Fatalf("group 2 dose 2 must lead by %d days: %+v", cfg.Group2Dose2Lead, tm)
		}
	}
}

func TestCostMatrixSweepSentinels(t *testing.T) {
	p := testProblem(200)
	cfg := DefaultCostMatrixConfig()
	solve := func(_ Problem, tm Timing) (Result, error) {
		return Result{Timing: tm, Combined: float64(tm.Tau1[0] + tm.Tau2[0])}, nil
	}
	m, err := CostMatrixSweep(context.Background(), p, cfg, solve)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(m.Tau1Values) != 6 || len(m.Tau2Values) != 7 {
		t.Fatalf("grid %dx%d, want 6x7", len(m.Tau1Values), len(m.Tau2Values))
	}
	for ri, tau2 := range m.Tau2Values {
		for ci, tau1 := range m.Tau1Values {
			got := m.Cost[ri][ci]
			if tau2 <= tau1+cfg.MinGap {
				if !math.IsInf(got, 1) {
					t.Fatalf("cell tau1=%d tau2=%d: want infeasible sentinel, got %v", tau1, tau2, got)
				}
				continue
			}
			if want := float64(tau1 + tau2); got != want {
				t.Fatalf("cell tau1=%d tau2=%d: got %v, want %v", tau1, tau2, got, want)
			}
		}
	}
}

func TestCompareWeightsNormalizesAndKeepsShape(t *testing.T) {
	p := testProblem(100)
	sets := []Weights{
		{W1: 2, W2: 1, W3: 1, Name: "unscaled"},
		{W1: 0.33, W2: 0.33, W3: 0.34},
	}
	solve := func(q Problem, tm Timing) (Result, error) {
		if !q.Weights.Valid() {
			t.Fatalf("solver received unnormalized weights: %+v", q.Weights)
		}
		if q.Weights.Name == "unscaled" {
			return Result{}, &StatusError{Status: StatusInfeasible}
		}
		return Result{Timing: tm, Combined: 1, Weights: q.Weights}, nil
	}
	out, err := CompareWeights(context.Background(), p, testTiming(), sets, solve)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("rows = %d, want 2", len(out))
	}
	if out[0].Solved {
		t.Fatal("infeasible triple should stay unsolved in the table")
	}
	if !out[0].Weights.Adjusted {
		t.Fatal("unscaled triple should be flagged adjusted")
	}
	if !out[1].Solved {
		t.Fatal("balanced triple should solve")
	}
}
