package series

import (
	"errors"
	"strings"
	"testing"

	"vaxalloc/internal/opt"
)

const sampleCSV = `Time,S1,I1,Q1,V11,V21,R1,S2,I2,Q2,V12,V22,R2
0,800,10,5,100,20,65,900,15,10,50,5,20
1,790,12,6,102,21,69,890,18,11,52,6,23
2,780,14,7,104,22,73,880,21,12,54,7,26
`

func TestFromCSV(t *testing.T) {
	s, err := FromCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Horizon() != 3 {
		t.Fatalf("horizon = %d, want 3", s.Horizon())
	}
	if s.S[0][0] != 800 || s.S[1][2] != 880 {
		t.Fatalf("susceptible misparsed: %v %v", s.S[0][0], s.S[1][2])
	}
	if s.V1[0][1] != 102 || s.V2[1][1] != 6 {
		t.Fatalf("dose columns misparsed: V11[1]=%v V22[1]=%v", s.V1[0][1], s.V2[1][1])
	}
}

func TestFromCSVMissingColumns(t *testing.T) {
	csv := "Time,S1,I1,Q1,V11,V21,R1,S2,I2\n0,1,2,3,4,5,6,7,8\n"
	_, err := FromCSV(strings.NewReader(csv))
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DataError", err)
	}
	if len(de.Missing) != 4 {
		t.Fatalf("missing = %v, want Q2 V12 V22 R2", de.Missing)
	}
}

func TestFromCSVRejectsBadValues(t *testing.T) {
	cases := []string{
		// not a number
		"Time,S1,I1,Q1,V11,V21,R1,S2,I2,Q2,V12,V22,R2\n0,x,1,1,1,1,1,1,1,1,1,1,1\n0,1,1,1,1,1,1,1,1,1,1,1,1\n",
		// negative count
		"Time,S1,I1,Q1,V11,V21,R1,S2,I2,Q2,V12,V22,R2\n0,-5,1,1,1,1,1,1,1,1,1,1,1\n0,1,1,1,1,1,1,1,1,1,1,1,1\n",
		// ragged row
		"Time,S1,I1,Q1,V11,V21,R1,S2,I2,Q2,V12,V22,R2\n0,1,2\n",
		// empty input
		"",
		// single data row
		"Time,S1,I1,Q1,V11,V21,R1,S2,I2,Q2,V12,V22,R2\n0,1,1,1,1,1,1,1,1,1,1,1,1\n",
	}
	for i, c := range cases {
		_, err := FromCSV(strings.NewReader(c))
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("case %d: error = %v, want DataError", i, err)
		}
	}
}

func TestValidate(t *testing.T) {
	s := Demo(50)
	if err := Validate(s); err != nil {
		t.Fatalf("demo series invalid: %v", err)
	}
	s.I[1] = s.I[1][:10]
	if err := Validate(s); err == nil {
		t.Fatal("length mismatch must fail validation")
	}
}

func TestDemoFeedsOptimizer(t *testing.T) {
	s := Demo(100)
	p := opt.Problem{
		Series:  s,
		Costs:   opt.DefaultCostParams(),
		Weights: opt.BalancedWeights(),
		Profile: opt.FlexibleProfile(),
	}
	if _, err := opt.BuildObjective(p, opt.DefaultTiming()); err != nil {
		t.Fatalf("demo series should build: %v", err)
	}
	if _, err := opt.BuildConstraints(p, opt.DefaultTiming()); err != nil {
		t.Fatalf("demo series should constrain: %v", err)
	}
}
