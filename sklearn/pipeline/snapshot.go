package pipeline

import (
	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/preprocessing"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
)

// Snapshot is the gob-encodable state of a fitted workflow.
type Snapshot struct {
	Spec         Spec
	FeatureNames []string

	// Scaler statistics. For "standard" Center is the mean; for "minmax" it
	// is the training minimum.
	ScalerKind   string
	Center       []float64
	Scale        []float64
	DDOF         int
	FeatureRange [2]float64

	Coefficients []float64
	Intercept    float64
	NIter        int
	Checksum     string
}

// Snapshot captures the fitted state. featureNames may be nil.
func (w *Workflow) Snapshot(featureNames []string) (*Snapshot, error) {
	if err := w.state.RequireFitted("Workflow", "Snapshot"); err != nil {
		return nil, err
	}
	coef := w.model.Coef()
	if featureNames != nil && len(featureNames) != len(coef) {
		return nil, errors.NewDimensionError("Workflow.Snapshot", len(coef), len(featureNames), 1)
	}

	s := &Snapshot{
		Spec:         w.spec,
		FeatureNames: featureNames,
		ScalerKind:   w.scaler.Kind(),
		Coefficients: coef,
		Intercept:    w.model.Intercept(),
		NIter:        w.model.NIter(),
		Checksum:     model.Checksum(coef),
	}
	switch sc := w.scaler.(type) {
	case *preprocessing.StandardScaler:
		s.Center, s.Scale, s.DDOF = sc.Mean, sc.Scale, sc.DDOF
	case *preprocessing.MinMaxScaler:
		s.Center, s.Scale, s.FeatureRange = sc.DataMin, sc.Scale, sc.FeatureRange
	default:
		return nil, errors.NewValueError("Workflow.Snapshot", "unsupported scaler "+w.scaler.Kind())
	}
	return s, nil
}

// Weights returns the model coefficients in the portable JSON form. The
// coefficients apply to scaled features, so the scaler statistics travel in
// Metadata: z = (x − scaler_center) / scaler_scale, and for "minmax" also
// z·(hi − lo) + lo with scaler_feature_range = [lo, hi].
func (s *Snapshot) Weights() *model.ModelWeights {
	meta := map[string]interface{}{
		"n_iter":        s.NIter,
		"scaler":        s.ScalerKind,
		"scaler_center": append([]float64(nil), s.Center...),
		"scaler_scale":  append([]float64(nil), s.Scale...),
		"checksum":      s.Checksum,
	}
	switch s.ScalerKind {
	case preprocessing.KindStandard:
		meta["scaler_ddof"] = s.DDOF
	case preprocessing.KindMinMax:
		meta["scaler_feature_range"] = []float64{s.FeatureRange[0], s.FeatureRange[1]}
	}
	return &model.ModelWeights{
		ModelType:    "ElasticNet",
		Version:      "1.0.0",
		Coefficients: append([]float64(nil), s.Coefficients...),
		Intercept:    s.Intercept,
		Features:     s.FeatureNames,
		IsFitted:     true,
		Hyperparameters: map[string]interface{}{
			"penalty":       s.Spec.Penalty,
			"mixture":       s.Spec.Mixture,
			"max_iter":      s.Spec.MaxIter,
			"tol":           s.Spec.Tol,
			"fit_intercept": true,
		},
		Metadata: meta,
	}
}

// Restore rebuilds a fitted workflow from a snapshot.
func Restore(s *Snapshot, opts ...Option) (*Workflow, error) {
	if s == nil {
		return nil, errors.NewValueError("pipeline.Restore", "snapshot cannot be nil")
	}
	w, err := NewWorkflow(s.Spec, opts...)
	if err != nil {
		return nil, err
	}

	switch s.ScalerKind {
	case preprocessing.KindStandard:
		w.scaler, err = preprocessing.RestoreStandardScaler(s.Center, s.Scale, s.DDOF)
	case preprocessing.KindMinMax:
		w.scaler, err = preprocessing.RestoreMinMaxScaler(s.Center, s.Scale, s.FeatureRange)
	default:
		err = errors.NewValidationError("scaler", "unknown scaler kind in snapshot", s.ScalerKind)
	}
	if err != nil {
		return nil, err
	}

	en := linear_model.NewElasticNet()
	if err := en.ImportWeights(s.Weights()); err != nil {
		return nil, err
	}
	if len(s.Center) != len(s.Coefficients) {
		return nil, errors.NewDimensionError("pipeline.Restore", len(s.Coefficients), len(s.Center), 1)
	}
	w.model = en
	w.state.SetDimensions(len(s.Coefficients), 0)
	w.state.SetFitted()
	return w, nil
}
