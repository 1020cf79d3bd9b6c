package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestRegressionMetrics(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(yTrue, yPred *mat.VecDense) (float64, error)
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{"mse perfect", MSE, vec(1, 2, 3, 4, 5), vec(1, 2, 3, 4, 5), 0, false},
		{"mse simple", MSE, vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.25, false},
		{"mse larger errors", MSE, vec(10, 20, 30), vec(12, 18, 33), 17.0 / 3.0, false},
		{"mse dimension mismatch", MSE, vec(1, 2, 3), vec(1, 2), 0, true},
		{"mse empty", MSE, &mat.VecDense{}, &mat.VecDense{}, 0, true},
		{"rmse", RMSE, vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.5, false},
		{"mae", MAE, vec(10, 20, 30), vec(12, 18, 33), 7.0 / 3.0, false},
		{"r2 perfect", R2Score, vec(1, 2, 3, 4, 5), vec(1, 2, 3, 4, 5), 1, false},
		{"r2 worse than mean", R2Score, vec(1, 2, 3, 4), vec(4, 3, 2, 1), -3, false},
		{"r2 constant truth", R2Score, vec(3, 3, 3), vec(2, 3, 4), 0, true},
		{"mape", MAPE, vec(100, 200), vec(110, 180), 10, false},
		{"mape all zero", MAPE, vec(0, 0), vec(1, 1), 0, true},
		{"explained variance with bias", ExplainedVarianceScore, vec(1, 2, 3), vec(2, 3, 4), 1, false},
		{"rsq perfect inverse", RSquared, vec(1, 2, 3, 4), vec(4, 3, 2, 1), 1, false},
		{"rsq dimension mismatch", RSquared, vec(1, 2, 3), vec(1, 2), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRSquaredConstantPredictions(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	got, err := RSquared(vec(1, 2, 3), vec(2, 2, 2))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
	require.Len(t, warned, 1)

	var uw *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warned[0], &uw))
	assert.Equal(t, "rsq", uw.Metric)
}

func TestRSquaredVersusTraditional(t *testing.T) {
	// biased but perfectly correlated predictions
	yTrue := vec(1, 2, 3, 4)
	yPred := vec(11, 12, 13, 14)

	rsq, err := RSquared(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rsq, 1e-12)

	trad, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.Less(t, trad, 0.0)
}

func BenchmarkMSE(b *testing.B) {
	size := 10000
	yTrue := mat.NewVecDense(size, nil)
	yPred := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.1*float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}
