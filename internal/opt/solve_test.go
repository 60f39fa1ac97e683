package opt

import (
	"errors"
	"math"
	"testing"
)

// End-to-end against the real solver: 100 days, equal populations, constant
// infections.
func TestSolveEndToEnd(t *testing.T) {
	p := testProblem(100)
	p.Costs.L = 1000
	tm := testTiming()

	res, err := Solve(p, tm)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if got := res.VPrime[0] + res.VPrime[1]; got > p.Costs.L+1e-6 {
		t.Fatalf("production %v exceeds capacity %v", got, p.Costs.L)
	}
	for g := 0; g < NumGroups; g++ {
		if res.U2[g] > res.U1[g]+1e-9 {
			t.Fatalf("group %d: dose-2 coverage %v exceeds dose-1 %v", g+1, res.U2[g], res.U1[g])
		}
		if res.U1[g] < 0.05-1e-9 || res.U1[g] > 0.95+1e-9 {
			t.Fatalf("group %d: U1 %v outside profile bounds", g+1, res.U1[g])
		}
	}
	for _, z := range []float64{res.Z1, res.Z2, res.Z3} {
		if z < 0 {
			t.Fatalf("raw objective negative: %+v", res)
		}
	}
	if res.Combined <= 0 {
		t.Fatalf("combined objective %v, want positive", res.Combined)
	}
}

func TestSolveIdempotent(t *testing.T) {
	p := testProblem(100)
	tm := testTiming()
	a, err := Solve(p, tm)
	if err != nil {
		t.Fatalf("first solve: %v", err)
	}
	b, err := Solve(p, tm)
	if err != nil {
		t.Fatalf("second solve: %v", err)
	}
	if math.Abs(a.Combined-b.Combined) > 1e-12 {
		t.Fatalf("objectives differ across identical solves: %v vs %v", a.Combined, b.Combined)
	}
	if a.U1 != b.U1 || a.U2 != b.U2 || a.VPrime != b.VPrime {
		t.Fatalf("allocations differ across identical solves:\n%+v\n%+v", a, b)
	}
}

func TestSolveInfeasibleReportsStatus(t *testing.T) {
	p := testProblem(100)
	// Capacity below the minimum coverage demand leaves no feasible point.
	p.Costs.L = 1
	_, err := Solve(p, testTiming())
	if err == nil {
		t.Fatal("expected infeasible build to fail")
	}
	if !errors.Is(err, ErrNotOptimal) {
		t.Fatalf("error %v should wrap ErrNotOptimal", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v should carry a status", err)
	}
	if se.Status != StatusInfeasible {
		t.Fatalf("status = %v, want infeasible", se.Status)
	}
}

func TestSolveRejectsInvalidTiming(t *testing.T) {
	p := testProblem(100)
	bad := Timing{Tau1: [NumGroups]int{40, 10}, Tau2: [NumGroups]int{40, 40}}
	_, err := Solve(p, bad)
	if !errors.Is(err, ErrInvalidTiming) {
		t.Fatalf("error = %v, want ErrInvalidTiming", err)
	}
}

func TestSolvePriorityProfile(t *testing.T) {
	p := testProblem(100)
	p.Profile = PriorityProfile()
	res, err := Solve(p, testTiming())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	for g, pair := range [][2]float64{{res.U1[0], res.U1[1]}, {res.U2[0], res.U2[1]}} {
		if pair[0] < pair[1]-1e-9 {
			t.Fatalf("dose %d: group 1 coverage %v must dominate group 2 %v", g+1, pair[0], pair[1])
		}
		if pair[0] > 2*pair[1]+1e-9 {
			t.Fatalf("dose %d: group 1 coverage %v more than doubles group 2 %v", g+1, pair[0], pair[1])
		}
	}
}
