package linear_model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

const elasticNetType = "ElasticNet"

// ElasticNet is a linear regression with a blended L1/L2 penalty, fitted by
// cyclic coordinate descent. It minimises
//
//	1/(2n)·‖y − b0 − Xβ‖² + penalty·(mixture·‖β‖₁ + (1−mixture)/2·‖β‖²)
//
// mixture=1 is the lasso, mixture=0 is ridge. The intercept is not penalised.
type ElasticNet struct {
	state *model.StateManager

	// Hyperparameters
	penalty      float64
	mixture      float64
	maxIter      int
	tol          float64
	fitIntercept bool

	version string

	// Learned parameters
	coef_      []float64
	intercept_ float64
	nIter_     int
}

// ElasticNetOption は設定オプション
type ElasticNetOption func(*ElasticNet)

// WithPenalty sets the regularisation strength (λ ≥ 0).
func WithPenalty(penalty float64) ElasticNetOption {
	return func(en *ElasticNet) { en.penalty = penalty }
}

// WithMixture sets the L1 share of the penalty (0 ≤ α ≤ 1).
func WithMixture(mixture float64) ElasticNetOption {
	return func(en *ElasticNet) { en.mixture = mixture }
}

// WithMaxIter は座標降下法の最大サイクル数を設定
func WithMaxIter(n int) ElasticNetOption {
	return func(en *ElasticNet) { en.maxIter = n }
}

// WithTol は収束判定の許容誤差を設定
func WithTol(tol float64) ElasticNetOption {
	return func(en *ElasticNet) { en.tol = tol }
}

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) ElasticNetOption {
	return func(en *ElasticNet) { en.fitIntercept = fit }
}

// NewElasticNet creates an unfitted model. Defaults: penalty 1, mixture 0.5,
// 100000 cycles, tolerance 1e-7, intercept fitted.
func NewElasticNet(options ...ElasticNetOption) *ElasticNet {
	en := &ElasticNet{
		state:        model.NewStateManager(),
		penalty:      1.0,
		mixture:      0.5,
		maxIter:      100000,
		tol:          1e-7,
		fitIntercept: true,
		version:      "1.0.0",
	}
	for _, opt := range options {
		opt(en)
	}
	return en
}

func (en *ElasticNet) validate() error {
	if en.penalty < 0 || math.IsNaN(en.penalty) || math.IsInf(en.penalty, 0) {
		return errors.NewValidationError("penalty", "must be a finite non-negative number", en.penalty)
	}
	if en.mixture < 0 || en.mixture > 1 || math.IsNaN(en.mixture) {
		return errors.NewValidationError("mixture", "must be in [0, 1]", en.mixture)
	}
	if en.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", en.maxIter)
	}
	if !(en.tol > 0) {
		return errors.NewValidationError("tol", "must be positive", en.tol)
	}
	return nil
}

// Fit learns the coefficients. y must be a single column.
func (en *ElasticNet) Fit(X, y mat.Matrix) error {
	if err := en.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	if n != yRows {
		return errors.NewDimensionError("ElasticNet.Fit", n, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("ElasticNet.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("ElasticNet.Fit", X, n, p, 0); err != nil {
		return err
	}
	if err := errors.CheckMatrix("ElasticNet.Fit", y, n, 1, 0); err != nil {
		return err
	}

	en.state.Reset()

	// 中心化した列を列優先で保持する
	cols := make([][]float64, p)
	xMean := make([]float64, p)
	colSq := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		mat.Col(col, j, X)
		if en.fitIntercept {
			xMean[j] = floats.Sum(col) / float64(n)
			floats.AddConst(-xMean[j], col)
		}
		colSq[j] = floats.Dot(col, col) / float64(n)
		cols[j] = col
	}

	resid := make([]float64, n)
	mat.Col(resid, 0, y)
	yMean := 0.0
	if en.fitIntercept {
		yMean = floats.Sum(resid) / float64(n)
		floats.AddConst(-yMean, resid)
	}
	nullDev := math.Max(floats.Dot(resid, resid)/float64(n), 1e-12)

	l1 := en.penalty * en.mixture
	l2 := en.penalty * (1 - en.mixture)
	beta := make([]float64, p)

	converged := false
	cycle := 0
	for cycle < en.maxIter {
		cycle++
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colSq[j] == 0 {
				continue
			}
			old := beta[j]
			rho := floats.Dot(cols[j], resid)/float64(n) + colSq[j]*old
			denom := colSq[j] + l2
			updated := softThreshold(rho, l1) / denom
			if updated == old {
				continue
			}
			floats.AddScaled(resid, old-updated, cols[j])
			beta[j] = updated
			if d := colSq[j] * (updated - old) * (updated - old); d > maxDelta {
				maxDelta = d
			}
		}
		if err := errors.CheckNumericalStability("ElasticNet.Fit", beta, cycle); err != nil {
			return err
		}
		if maxDelta <= en.tol*nullDev {
			converged = true
			break
		}
	}
	if !converged {
		w := errors.NewConvergenceWarning(elasticNetType, cycle,
			fmt.Sprintf("coordinate descent did not converge (penalty=%g, mixture=%g)", en.penalty, en.mixture))
		return errors.NewModelError("ElasticNet.Fit", "convergence", w)
	}

	intercept := 0.0
	if en.fitIntercept {
		intercept = yMean - floats.Dot(xMean, beta)
	}
	if err := errors.CheckNumericalStability("ElasticNet.Fit", beta, cycle); err != nil {
		return err
	}
	if err := errors.CheckScalar("ElasticNet.Fit", intercept, cycle); err != nil {
		return err
	}

	en.coef_ = beta
	en.intercept_ = intercept
	en.nIter_ = cycle
	en.state.SetDimensions(p, n)
	en.state.SetFitted()
	return nil
}

// softThreshold は L1 の近接作用素 sign(z)·max(|z|−γ, 0)
func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// Predict returns an n×1 matrix of predictions.
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := en.state.RequireFeatures(elasticNetType, "Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, rows, en.coef_, en.intercept_), nil
}

// Score returns R² of the predictions on X against y.
func (en *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := en.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Score(elasticNetType+".Score", y, pred)
}

// Coef は学習された重み係数を返す
func (en *ElasticNet) Coef() []float64 {
	if en.coef_ == nil {
		return nil
	}
	return append([]float64(nil), en.coef_...)
}

// Intercept は学習された切片を返す
func (en *ElasticNet) Intercept() float64 { return en.intercept_ }

// NIter returns the number of coordinate-descent cycles of the last fit.
func (en *ElasticNet) NIter() int { return en.nIter_ }

// Penalty returns the configured regularisation strength.
func (en *ElasticNet) Penalty() float64 { return en.penalty }

// Mixture returns the configured L1 share.
func (en *ElasticNet) Mixture() float64 { return en.mixture }

// IsFitted returns whether the model has been fitted.
func (en *ElasticNet) IsFitted() bool { return en.state.IsFitted() }

// GetParams returns the hyperparameters.
func (en *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       en.penalty,
		"mixture":       en.mixture,
		"max_iter":      en.maxIter,
		"tol":           en.tol,
		"fit_intercept": en.fitIntercept,
	}
}

// SetParams applies known keys; numbers may arrive as float64 after JSON.
func (en *ElasticNet) SetParams(params map[string]interface{}) error {
	if v, ok := asFloat(params["penalty"]); ok {
		en.penalty = v
	}
	if v, ok := asFloat(params["mixture"]); ok {
		en.mixture = v
	}
	if v, ok := asFloat(params["max_iter"]); ok {
		en.maxIter = int(v)
	}
	if v, ok := asFloat(params["tol"]); ok {
		en.tol = v
	}
	if v, ok := params["fit_intercept"].(bool); ok {
		en.fitIntercept = v
	}
	return en.validate()
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// ExportWeights はモデルの重みをエクスポート（チェックサム付き）
func (en *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	if err := en.state.RequireFitted(elasticNetType, "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := en.state.GetDimensions()
	return &model.ModelWeights{
		ModelType:       elasticNetType,
		Version:         en.version,
		Coefficients:    en.Coef(),
		Intercept:       en.intercept_,
		IsFitted:        true,
		Hyperparameters: en.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"n_iter":     en.nIter_,
			"checksum":   model.Checksum(en.coef_),
		},
	}, nil
}

// ImportWeights restores a model exported by ExportWeights.
func (en *ElasticNet) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("ElasticNet.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != elasticNetType {
		return errors.NewValueError("ElasticNet.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", elasticNetType, weights.ModelType))
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	if err := weights.VerifyChecksum(); err != nil {
		return err
	}
	if err := en.SetParams(weights.Hyperparameters); err != nil {
		return err
	}

	en.state.Reset()
	en.coef_ = append([]float64(nil), weights.Coefficients...)
	en.intercept_ = weights.Intercept
	nSamples := 0
	if v, ok := asFloat(weights.Metadata["n_samples"]); ok {
		nSamples = int(v)
	}
	if v, ok := asFloat(weights.Metadata["n_iter"]); ok {
		en.nIter_ = int(v)
	}
	en.state.SetDimensions(len(en.coef_), nSamples)
	en.state.SetFitted()
	return nil
}

// Importance is the contribution of one predictor to a fitted linear model.
type Importance struct {
	Variable   string  `json:"variable" yaml:"variable" csv:"variable"`
	Importance float64 `json:"importance" yaml:"importance" csv:"importance"`
	Sign       string  `json:"sign" yaml:"sign" csv:"sign"`
}

// VariableImportance returns |coef| per predictor with its sign ("POS" or
// "NEG"), sorted by decreasing importance. With standardised predictors the
// magnitudes are comparable across variables.
func (en *ElasticNet) VariableImportance(names []string) ([]Importance, error) {
	if err := en.state.RequireFitted(elasticNetType, "VariableImportance"); err != nil {
		return nil, err
	}
	if len(names) != len(en.coef_) {
		return nil, errors.NewDimensionError("ElasticNet.VariableImportance", len(en.coef_), len(names), 1)
	}
	out := make([]Importance, len(names))
	for j, name := range names {
		sign := "POS"
		if en.coef_[j] < 0 {
			sign = "NEG"
		}
		out[j] = Importance{Variable: name, Importance: math.Abs(en.coef_[j]), Sign: sign}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}

// String returns the string representation of the model
func (en *ElasticNet) String() string {
	if !en.state.IsFitted() {
		return fmt.Sprintf("ElasticNet(penalty=%g, mixture=%g, max_iter=%d, tol=%g)",
			en.penalty, en.mixture, en.maxIter, en.tol)
	}
	nFeatures, _ := en.state.GetDimensions()
	return fmt.Sprintf("ElasticNet(penalty=%g, mixture=%g, n_features=%d, n_iter=%d, fitted=true)",
		en.penalty, en.mixture, nFeatures, en.nIter_)
}
