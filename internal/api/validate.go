package api

import (
	"fmt"

	"vaxalloc/internal/model"
	"vaxalloc/internal/opt"
)

func validateWeights(w *opt.Weights) error {
	if w == nil {
		return nil
	}
	if w.W1 < 0 || w.W2 < 0 || w.W3 < 0 {
		return fmt.Errorf("weights must be >= 0")
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest, horizon int) error {
	if err := validateWeights(req.Weights); err != nil {
		return err
	}
	if req.Timing != nil {
		if err := req.Timing.Validate(horizon); err != nil {
			return err
		}
	}
	return nil
}

func validateSearchRequest(req *model.SearchRequest) error {
	if err := validateWeights(req.Weights); err != nil {
		return err
	}
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateSensitivityRequest(req *model.SensitivityRequest, horizon int) error {
	if err := validateWeights(req.Weights); err != nil {
		return err
	}
	if c := req.Config; c != nil {
		if c.Tau1Min < 0 || c.Tau1Max >= horizon || c.Tau1Min > c.Tau1Max {
			return fmt.Errorf("tau1 range must satisfy 0 <= tau1Min <= tau1Max < %d", horizon)
		}
		if c.Tau1Step <= 0 {
			return fmt.Errorf("tau1Step must be > 0")
		}
		if c.GapFloor < 0 {
			return fmt.Errorf("gapFloor must be >= 0")
		}
	}
	return nil
}

func validateCostMatrixRequest(req *model.CostMatrixRequest, horizon int) error {
	if err := validateWeights(req.Weights); err != nil {
		return err
	}
	if c := req.Config; c != nil {
		if c.Tau1Min < 0 || c.Tau1Max >= horizon || c.Tau1Min > c.Tau1Max {
			return fmt.Errorf("tau1 range must satisfy 0 <= tau1Min <= tau1Max < %d", horizon)
		}
		if c.Tau2Min < 0 || c.Tau2Max >= horizon || c.Tau2Min > c.Tau2Max {
			return fmt.Errorf("tau2 range must satisfy 0 <= tau2Min <= tau2Max < %d", horizon)
		}
		if c.Tau1Step <= 0 || c.Tau2Step <= 0 {
			return fmt.Errorf("grid steps must be > 0")
		}
	}
	return nil
}

func validateCompareRequest(req *model.CompareRequest, horizon int) error {
	for i := range req.Sets {
		w := req.Sets[i]
		if err := validateWeights(&w); err != nil {
			return fmt.Errorf("set %d: %w", i, err)
		}
	}
	if req.Timing != nil {
		if err := req.Timing.Validate(horizon); err != nil {
			return err
		}
	}
	return nil
}
