// Package pipeline chains the scaling step and the elastic net into a single
// workflow that is fitted and applied as one unit.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/pkg/errors"
	"github.com/YuminosukeSato/enettune/pkg/log"
	"github.com/YuminosukeSato/enettune/preprocessing"
	"github.com/YuminosukeSato/enettune/sklearn/linear_model"
)

// Spec declares a workflow without fitting anything: which scaler to use
// and the elastic-net hyperparameters.
type Spec struct {
	Scaler  string  `json:"scaler" yaml:"scaler"`
	Penalty float64 `json:"penalty" yaml:"penalty"`
	Mixture float64 `json:"mixture" yaml:"mixture"`
	MaxIter int     `json:"max_iter" yaml:"max_iter"`
	Tol     float64 `json:"tol" yaml:"tol"`
}

// DefaultSpec is a standardised elastic net with an even L1/L2 blend.
func DefaultSpec() Spec {
	return Spec{
		Scaler:  preprocessing.KindStandard,
		Penalty: 0,
		Mixture: 0.5,
		MaxIter: 100000,
		Tol:     1e-7,
	}
}

// Validate checks the spec without building anything.
func (s Spec) Validate() error {
	if _, err := preprocessing.NewScaler(s.Scaler); err != nil {
		return err
	}
	if s.Penalty < 0 || math.IsNaN(s.Penalty) || math.IsInf(s.Penalty, 0) {
		return errors.NewValidationError("penalty", "must be a finite non-negative number", s.Penalty)
	}
	if s.Mixture < 0 || s.Mixture > 1 || math.IsNaN(s.Mixture) {
		return errors.NewValidationError("mixture", "must be in [0, 1]", s.Mixture)
	}
	if s.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", s.MaxIter)
	}
	if !(s.Tol > 0) {
		return errors.NewValidationError("tol", "must be positive", s.Tol)
	}
	return nil
}

// Step names used in logs and String.
const (
	StepScaler = "scaler"
	StepModel  = "elastic_net"
)

// Workflow is a fitted or unfitted scaler → elastic net chain. The scaler
// only ever sees the rows passed to Fit.
type Workflow struct {
	state  *model.StateManager
	logger log.Logger

	spec   Spec
	scaler preprocessing.Scaler
	model  *linear_model.ElasticNet
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l log.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkflow builds an unfitted workflow from spec.
func NewWorkflow(spec Spec, opts ...Option) (*Workflow, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	scaler, err := preprocessing.NewScaler(spec.Scaler)
	if err != nil {
		return nil, err
	}
	w := &Workflow{
		state:  model.NewStateManager(),
		logger: log.Nop(),
		spec:   spec,
		scaler: scaler,
		model: linear_model.NewElasticNet(
			linear_model.WithPenalty(spec.Penalty),
			linear_model.WithMixture(spec.Mixture),
			linear_model.WithMaxIter(spec.MaxIter),
			linear_model.WithTol(spec.Tol),
		),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Fit fits the scaler on X, then the model on the scaled X.
func (w *Workflow) Fit(X, y mat.Matrix) error {
	start := time.Now()
	w.state.Reset()

	Xt, err := w.scaler.FitTransform(X)
	if err != nil {
		return errors.Wrapf(err, "failed to fit step '%s'", StepScaler)
	}
	if err := w.model.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "failed to fit step '%s'", StepModel)
	}

	rows, cols := X.Dims()
	w.state.SetDimensions(cols, rows)
	w.state.SetFitted()

	if w.logger.Enabled(context.Background(), log.LevelDebug) {
		w.logger.Debug("workflow fitted",
			log.OperationKey, log.OperationFit,
			log.SamplesKey, rows,
			log.FeaturesKey, cols,
			log.RegularizationKey, w.spec.Penalty,
			log.MixtureKey, w.spec.Mixture,
			log.IterationKey, w.model.NIter(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// Predict scales X with the fitted scaler and predicts with the model.
func (w *Workflow) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := w.state.RequireFeatures("Workflow", "Predict", cols); err != nil {
		return nil, err
	}
	Xt, err := w.scaler.Transform(X)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform at step '%s'", StepScaler)
	}
	return w.model.Predict(Xt)
}

// Score returns R² of the workflow on X, y.
func (w *Workflow) Score(X, y mat.Matrix) (float64, error) {
	_, cols := X.Dims()
	if err := w.state.RequireFeatures("Workflow", "Score", cols); err != nil {
		return 0, err
	}
	Xt, err := w.scaler.Transform(X)
	if err != nil {
		return 0, err
	}
	return w.model.Score(Xt, y)
}

// IsFitted reports whether Fit completed.
func (w *Workflow) IsFitted() bool { return w.state.IsFitted() }

// Spec returns the declaration the workflow was built from.
func (w *Workflow) Spec() Spec { return w.spec }

// Model returns the elastic-net step.
func (w *Workflow) Model() *linear_model.ElasticNet { return w.model }

// Scaler returns the scaling step.
func (w *Workflow) Scaler() preprocessing.Scaler { return w.scaler }

// String returns the string representation of the workflow
func (w *Workflow) String() string {
	return fmt.Sprintf("Workflow([%s: %v] -> [%s: %v])", StepScaler, w.scaler, StepModel, w.model)
}
