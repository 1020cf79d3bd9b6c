package model_selection

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// Candidate is one point of the hyperparameter grid.
type Candidate struct {
	Penalty float64 `json:"penalty" yaml:"penalty" csv:"penalty"`
	Mixture float64 `json:"mixture" yaml:"mixture" csv:"mixture"`
}

// MaxGridPoints bounds the number of penalties RegularGrid produces.
const MaxGridPoints = 1_000_000

// RegularGrid returns min, min+step, ... up to and including max. Values are
// rounded to 1e-10 so that 0.1-style steps do not accumulate drift.
//
//	RegularGrid(0, 10, 0.5) // 0, 0.5, 1, ..., 10 (21 values)
func RegularGrid(min, max, step float64) ([]float64, error) {
	for _, v := range []float64{min, max, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValidationError("grid", "bounds and step must be finite", v)
		}
	}
	if min < 0 {
		return nil, errors.NewValidationError("penalty_min", "must be non-negative", min)
	}
	if max < min {
		return nil, errors.NewValidationError("penalty_max", "must not be below penalty_min", max)
	}
	if step <= 0 {
		if max == min {
			return []float64{min}, nil
		}
		return nil, errors.NewValidationError("penalty_step", "must be positive", step)
	}

	span := math.Floor((max-min)/step + 1e-9)
	if span+1 > MaxGridPoints {
		return nil, errors.NewValidationError("penalty_step",
			fmt.Sprintf("too small, grid would exceed %d points", MaxGridPoints), step)
	}
	count := int(span) + 1
	grid := make([]float64, count)
	for i := range grid {
		grid[i] = math.Round((min+float64(i)*step)*1e10) / 1e10
	}
	return grid, nil
}
