// Package model defines the estimator contracts shared by the scalers, the
// elastic net and the workflow, plus fitted-state tracking and weight export.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer computes the coefficient of determination R² of the prediction.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor is a fitted-then-predict regression model.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// Transformer learns parameters from X and applies them to any matrix with
// the same columns.
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters for logging and export.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
