package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

func TestNewMetricSet(t *testing.T) {
	set, err := NewMetricSet()
	require.NoError(t, err)
	assert.Equal(t, []string{NameRMSE, NameRSQ}, set.Names())

	set, err = NewMetricSet("MAE", " rmse", "rsq_trad")
	require.NoError(t, err)
	assert.Equal(t, []string{NameMAE, NameRMSE, NameRSQTrad}, set.Names())

	m, ok := set.Lookup(NameRSQTrad)
	require.True(t, ok)
	assert.Equal(t, Maximize, m.Direction)
	_, ok = set.Lookup(NameRSQ)
	assert.False(t, ok)

	_, err = NewMetricSet("rmse", "accuracy")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = NewMetricSet("rmse", "rmse")
	assert.Error(t, err)
}

func TestMetricSetCompute(t *testing.T) {
	set, err := NewMetricSet("rmse", "rsq", "mae")
	require.NoError(t, err)

	yTrue := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5})

	est, err := set.Compute(yTrue, yPred)
	require.NoError(t, err)
	require.Len(t, est, 3)
	assert.Equal(t, NameRMSE, est[0].Metric)
	assert.InDelta(t, 0.5, est[0].Value, 1e-12)
	assert.Equal(t, NameRSQ, est[1].Metric)
	assert.InDelta(t, 0.9, est[1].Value, 1e-12)
	assert.InDelta(t, 0.5, est[2].Value, 1e-12)

	_, err = set.Compute(mat.NewDense(2, 2, nil), yPred)
	assert.Error(t, err)
	_, err = MetricSet{}.Compute(yTrue, yPred)
	assert.Error(t, err)
}

func TestRSQTradConstantTruthIsNaN(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(nil)

	set, err := NewMetricSet(NameRSQTrad)
	require.NoError(t, err)
	est, err := set.Compute(mat.NewVecDense(3, []float64{2, 2, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(est[0].Value))
}

func TestExplainedVarianceMetric(t *testing.T) {
	set, err := NewMetricSet(NameExplVar, NameRSQTrad)
	require.NoError(t, err)
	m, ok := set.Lookup(NameExplVar)
	require.True(t, ok)
	assert.Equal(t, Maximize, m.Direction)
	assert.Contains(t, Available(), NameExplVar)

	// 予測の定数バイアスは explained_variance には効かない
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	est, err := set.Compute(yTrue, mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, est[0].Value, 1e-12)
	assert.InDelta(t, 0.8, est[1].Value, 1e-12)

	est, err = set.Compute(yTrue, mat.NewVecDense(4, []float64{3, 4, 5, 6}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, est[0].Value, 1e-12)
	assert.Less(t, est[1].Value, 0.0)

	errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(nil)
	est, err = set.Compute(mat.NewVecDense(3, []float64{2, 2, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(est[0].Value))
}

func TestDirection(t *testing.T) {
	assert.True(t, Minimize.Better(1, 2))
	assert.False(t, Minimize.Better(2, 2))
	assert.True(t, Maximize.Better(0.9, 0.8))
	assert.Equal(t, "maximize", Maximize.String())
	assert.Contains(t, Available(), NameMAPE)
}
