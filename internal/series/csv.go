package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vaxalloc/internal/opt"
)

// requiredColumns is the flat-file contract: a time index plus the six
// compartments per group. V1x/V2x are dose-1/dose-2 counts.
var requiredColumns = []string{
	"Time",
	"S1", "I1", "Q1", "V11", "V21", "R1",
	"S2", "I2", "Q2", "V12", "V22", "R2",
}

// DataError reports malformed or incomplete epidemic input. It aborts the
// whole run; there is no partial recovery from a broken series.
type DataError struct {
	Reason  string
	Missing []string
}

func (e *DataError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("series: %s: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return "series: " + e.Reason
}

// FromCSV parses an epidemic series from a header-first CSV stream.
func FromCSV(r io.Reader) (opt.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return opt.Series{}, &DataError{Reason: "empty input"}
	}
	if err != nil {
		return opt.Series{}, &DataError{Reason: fmt.Sprintf("reading header: %v", err)}
	}

	colIdx := map[string]int{}
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := colIdx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return opt.Series{}, &DataError{Reason: "missing required columns", Missing: missing}
	}

	var s opt.Series
	appendVal := func(dst *[opt.NumGroups][]float64, g int, record []string, col string, line int) error {
		raw := strings.TrimSpace(record[colIdx[col]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &DataError{Reason: fmt.Sprintf("line %d: column %s: %q is not a number", line, col, raw)}
		}
		if v < 0 {
			return &DataError{Reason: fmt.Sprintf("line %d: column %s: negative count %v", line, col, v)}
		}
		dst[g] = append(dst[g], v)
		return nil
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return opt.Series{}, &DataError{Reason: fmt.Sprintf("line %d: %v", line+1, err)}
		}
		line++
		for g := 0; g < opt.NumGroups; g++ {
			suffix := strconv.Itoa(g + 1)
			for _, p := range []struct {
				dst *[opt.NumGroups][]float64
				col string
			}{
				{&s.S, "S" + suffix},
				{&s.I, "I" + suffix},
				{&s.Q, "Q" + suffix},
				{&s.V1, "V1" + suffix},
				{&s.V2, "V2" + suffix},
				{&s.R, "R" + suffix},
			} {
				if err := appendVal(p.dst, g, record, p.col, line); err != nil {
					return opt.Series{}, err
				}
			}
		}
	}

	if err := Validate(s); err != nil {
		return opt.Series{}, err
	}
	return s, nil
}

// Validate checks structural invariants shared by every loader path: equal
// sequence lengths per group and at least two time points.
func Validate(s opt.Series) error {
	horizon := len(s.S[0])
	if horizon < 2 {
		return &DataError{Reason: fmt.Sprintf("series needs at least 2 time points, got %d", horizon)}
	}
	for g := 0; g < opt.NumGroups; g++ {
		for name, seq := range map[string][]float64{
			"S": s.S[g], "I": s.I[g], "Q": s.Q[g],
			"V1": s.V1[g], "V2": s.V2[g], "R": s.R[g],
		} {
			if len(seq) != horizon {
				return &DataError{Reason: fmt.Sprintf("group %d: %s has %d points, want %d", g+1, name, len(seq), horizon)}
			}
			for t, v := range seq {
				if v < 0 {
					return &DataError{Reason: fmt.Sprintf("group %d: %s[%d] is negative (%v)", g+1, name, t, v)}
				}
			}
		}
	}
	return nil
}
