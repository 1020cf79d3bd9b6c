package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("ElasticNet", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	s.SetFitted()
	s.SetDimensions(3, 50)
	assert.NoError(t, s.RequireFeatures("ElasticNet", "Predict", 3))

	err = s.RequireFeatures("ElasticNet", "Predict", 4)
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Expected)

	s.Reset()
	assert.False(t, s.IsFitted())
	nFeatures, nSamples := s.GetDimensions()
	assert.Zero(t, nFeatures)
	assert.Zero(t, nSamples)
}

func TestModelWeightsValidateAndChecksum(t *testing.T) {
	coef := []float64{0.5, -1.25, 0}
	w := &ModelWeights{
		ModelType:    "ElasticNet",
		Version:      "1.0.0",
		Coefficients: coef,
		Intercept:    2,
		Features:     []string{"x1", "x2", "x3"},
		IsFitted:     true,
		Metadata:     map[string]interface{}{"checksum": Checksum(coef)},
	}
	require.NoError(t, w.Validate())
	require.NoError(t, w.VerifyChecksum())

	data, err := w.ToJSON()
	require.NoError(t, err)

	var back ModelWeights
	require.NoError(t, back.FromJSON(data))
	assert.Equal(t, coef, back.Coefficients)
	assert.NoError(t, back.VerifyChecksum())

	back.Coefficients[0] = 0.6
	assert.Error(t, back.VerifyChecksum())

	back.Features = []string{"x1"}
	assert.Error(t, back.Validate())
	assert.Error(t, (&ModelWeights{Version: "1"}).Validate())
}

type snapshot struct {
	Name  string
	Coef  []float64
	State StateManager
}

func TestSaveLoadRoundTrip(t *testing.T) {
	in := snapshot{Name: "wf", Coef: []float64{1, 2}}
	in.State.SetFitted()

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&in, &buf))

	var out snapshot
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, "wf", out.Name)
	assert.Equal(t, []float64{1, 2}, out.Coef)
	assert.True(t, out.State.IsFitted())

	path := t.TempDir() + "/model.gob"
	require.NoError(t, SaveModel(&in, path))
	var fromFile snapshot
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, in.Coef, fromFile.Coef)

	assert.Error(t, LoadModel(&fromFile, t.TempDir()+"/missing.gob"))
}
