package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

const linearRegressionType = "LinearRegression"

// LinearRegression is ordinary least squares solved by QR decomposition.
// It is the unpenalised reference for ElasticNet fits with penalty 0.
type LinearRegression struct {
	state *model.StateManager // State management (composition instead of embedding)

	fitIntercept bool
	version      string

	coef_      []float64
	intercept_ float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		version:      "1.0.0",
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	width := cols
	if lr.fitIntercept {
		width++
	}
	if rows < width {
		return errors.NewModelError("LinearRegression.Fit", "underdetermined system", errors.ErrSingularMatrix)
	}

	// [1 | X]
	XFit := mat.NewDense(rows, width, nil)
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	for i := 0; i < rows; i++ {
		if lr.fitIntercept {
			XFit.Set(i, 0, 1.0)
		}
		for j := 0; j < cols; j++ {
			XFit.Set(i, j+offset, X.At(i, j))
		}
	}

	// 正規方程式より数値的に安定なQR分解を使用
	var qr mat.QR
	qr.Factorize(XFit)
	solution := mat.NewDense(width, 1, nil)
	if err := qr.SolveTo(solution, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "solve", errors.Wrap(err, "failed to solve linear system"))
	}

	lr.state.Reset()
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = solution.At(0, 0)
	}
	lr.coef_ = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lr.coef_[j] = solution.At(j+offset, 0)
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := lr.state.RequireFeatures(linearRegressionType, "Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, rows, lr.coef_, lr.intercept_), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Score("LinearRegression.Score", y, pred)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	return append([]float64(nil), lr.coef_...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the model's hyperparameters
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// ExportWeights はモデルの重みをエクスポート（完全な再現性を保証）
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted(linearRegressionType, "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.state.GetDimensions()
	return &model.ModelWeights{
		ModelType:       linearRegressionType,
		Version:         lr.version,
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept_,
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"checksum":   model.Checksum(lr.coef_),
		},
	}, nil
}

// ImportWeights はモデルの重みをインポート
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != linearRegressionType {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", linearRegressionType, weights.ModelType))
	}
	if err := weights.VerifyChecksum(); err != nil {
		return err
	}
	if v, ok := weights.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = v
	}

	lr.state.Reset()
	lr.coef_ = append([]float64(nil), weights.Coefficients...)
	lr.intercept_ = weights.Intercept
	lr.state.SetDimensions(len(lr.coef_), 0)
	lr.state.SetFitted()
	return nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)", lr.fitIntercept, nFeatures)
}
