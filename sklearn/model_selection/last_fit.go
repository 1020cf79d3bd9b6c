package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/metrics"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
	"github.com/YuminosukeSato/enettune/sklearn/pipeline"
)

// Finalize binds the selected candidate into spec.
func Finalize(spec pipeline.Spec, c Candidate) pipeline.Spec {
	spec.Penalty = c.Penalty
	spec.Mixture = c.Mixture
	return spec
}

// LastFitResult is the outcome of the final fit: metrics on the test set,
// the test predictions, the fitted workflow and its variable importance.
type LastFitResult struct {
	Spec        pipeline.Spec
	Metrics     []metrics.Estimate
	Observed    []float64
	Predictions []float64
	Workflow    *pipeline.Workflow
	Importance  []linear_model.Importance
}

// Metric returns the test value of one metric.
func (r *LastFitResult) Metric(name string) (float64, bool) {
	for _, e := range r.Metrics {
		if e.Metric == name {
			return e.Value, true
		}
	}
	return 0, false
}

// LastFit fits spec on the whole training design and evaluates it once on
// the test design. The test rows are never seen by the scaler or the model.
func LastFit(ctx context.Context, spec pipeline.Spec, train, test *dataset.Design,
	set metrics.MetricSet, opts ...TuneOption) (res *LastFitResult, err error) {
	defer errors.Recover(&err, "LastFit")

	cfg := tuneConfig{logger: log.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if train == nil || test == nil {
		return nil, errors.NewValueError("LastFit", "train and test designs are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	logger := cfg.logger.With(log.OperationKey, log.OperationLastFit)
	start := time.Now()

	w, err := pipeline.NewWorkflow(spec, pipeline.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	if err := w.Fit(train.X, train.Y); err != nil {
		return nil, errors.Wrap(err, "final fit failed")
	}
	pred, err := w.Predict(test.X)
	if err != nil {
		return nil, err
	}
	est, err := set.Compute(test.Y, pred)
	if err != nil {
		return nil, err
	}
	imp, err := w.Model().VariableImportance(train.FeatureNames)
	if err != nil {
		return nil, err
	}

	res = &LastFitResult{
		Spec:        spec,
		Metrics:     est,
		Observed:    mat.Col(nil, 0, test.Y),
		Predictions: mat.Col(nil, 0, pred),
		Workflow:    w,
		Importance:  imp,
	}

	fields := []any{
		log.RegularizationKey, spec.Penalty,
		log.MixtureKey, spec.Mixture,
		log.SamplesKey, train.Rows(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	for _, e := range est {
		fields = append(fields, "metrics."+e.Metric, e.Value)
	}
	logger.Info("final fit evaluated", fields...)
	return res, nil
}
