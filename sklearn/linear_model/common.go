// Package linear_model provides the penalised and unpenalised linear
// regressions used by the tuning workflow.
package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/core/parallel"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

var (
	_ model.Regressor       = (*ElasticNet)(nil)
	_ model.ParameterGetter = (*ElasticNet)(nil)
	_ model.Regressor       = (*LinearRegression)(nil)
	_ model.ParameterGetter = (*LinearRegression)(nil)
)

// 行数がこの値を超えると予測を並列化する
const predictParallelThreshold = 4096

// linearPredict computes X·coef + intercept as an n×1 matrix.
func linearPredict(X mat.Matrix, rows int, coef []float64, intercept float64) *mat.Dense {
	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := intercept
			for j, c := range coef {
				pred += X.At(i, j) * c
			}
			out.Set(i, 0, pred)
		}
	})
	return out
}

// r2Score は決定係数 1 − SS_res/SS_tot を計算
func r2Score(op string, y, pred mat.Matrix) (float64, error) {
	rows, _ := y.Dims()
	pRows, _ := pred.Dims()
	if rows != pRows {
		return 0, errors.NewDimensionError(op, rows, pRows, 0)
	}
	if rows == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	var yMean float64
	for i := 0; i < rows; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(rows)

	var ssTot, ssRes float64
	for i := 0; i < rows; i++ {
		yi := y.At(i, 0)
		d := yi - pred.At(i, 0)
		ssTot += (yi - yMean) * (yi - yMean)
		ssRes += d * d
	}
	if ssTot == 0 {
		return 0, errors.NewValueError(op, "cannot compute score with zero variance in y_true")
	}
	return 1.0 - ssRes/ssTot, nil
}
