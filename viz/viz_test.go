package viz

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
	"github.com/YuminosukeSato/enettune/sklearn/model_selection"
)

func fakeResult() *model_selection.TuneResult {
	res := &model_selection.TuneResult{Mixture: 0.5, Metrics: metrics.DefaultMetricSet()}
	for i := 0; i <= 4; i++ {
		penalty := float64(i) * 0.5
		res.Grid = append(res.Grid, penalty)
		res.Records = append(res.Records,
			model_selection.MetricRecord{Penalty: penalty, Mixture: 0.5, Metric: "rmse", Mean: 1 + 0.1*float64(i), StdErr: 0.05, N: 10},
			model_selection.MetricRecord{Penalty: penalty, Mixture: 0.5, Metric: "rsq", Mean: 0.9 - 0.05*float64(i), StdErr: math.NaN(), N: 10},
		)
	}
	return res
}

func TestTuningCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "tune_curve.png")
	require.NoError(t, TuningCurve(fakeResult(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTuningCurveErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, TuningCurve(nil, filepath.Join(dir, "a.png")))
	assert.Error(t, TuningCurve(fakeResult(), filepath.Join(dir, "a.svg")))
}

func TestVariableImportance(t *testing.T) {
	imp := []linear_model.Importance{
		{Variable: "x1", Importance: 2.5, Sign: "POS"},
		{Variable: "x2", Importance: 1.2, Sign: "NEG"},
		{Variable: "x3", Importance: 0.1, Sign: "POS"},
	}
	path := filepath.Join(t.TempDir(), "variable_importance.png")
	require.NoError(t, VariableImportance(imp, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, VariableImportance(nil, path))
}
