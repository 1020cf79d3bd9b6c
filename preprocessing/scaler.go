// Package preprocessing provides the feature-scaling step of the workflow.
// Scalers learn their statistics from the matrix passed to Fit only and
// apply them unchanged to any other matrix with the same columns.
package preprocessing

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/enettune/core/model"
	"github.com/YuminosukeSato/enettune/core/parallel"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// 行数がこの値を超えると Transform を並列化する
const parallelRowThreshold = 2048

// 標準偏差・範囲がこの値未満の列は定数列として扱う
const constantTolerance = 1e-8

// Scaler is a fitted-then-applied column transformation.
type Scaler interface {
	model.Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
	IsFitted() bool
	GetParams() map[string]interface{}
	// Kind returns the name accepted by NewScaler.
	Kind() string
}

// Scaler kinds accepted by NewScaler.
const (
	KindStandard = "standard"
	KindMinMax   = "minmax"
)

// NewScaler returns an unfitted scaler of the given kind with default settings.
func NewScaler(kind string) (Scaler, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindStandard, "":
		return NewStandardScalerDefault(), nil
	case KindMinMax:
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be 'standard' or 'minmax'", kind)
	}
}

// StandardScaler はデータを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差 (定数列は1)
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool

	// DDOF は分散の自由度補正。1なら標本標準偏差、0なら母標準偏差 (デフォルト: 1)
	DDOF int
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
		DDOF:     1,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// RestoreStandardScaler rebuilds a fitted scaler from exported statistics.
func RestoreStandardScaler(mean, scale []float64, ddof int) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, errors.NewValidationError("scale", "mean and scale must be non-empty and equal length", len(scale))
	}
	s := NewStandardScalerDefault()
	s.Mean = append([]float64(nil), mean...)
	s.Scale = append([]float64(nil), scale...)
	s.DDOF = ddof
	s.state.SetDimensions(len(mean), 0)
	s.state.SetFitted()
	return s, nil
}

// Kind implements Scaler.
func (s *StandardScaler) Kind() string { return KindStandard }

// IsFitted reports whether Fit has completed.
func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.DDOF < 0 {
		return errors.NewValidationError("ddof", "must be non-negative", s.DDOF)
	}

	s.state.Reset()
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if err := errors.CheckNumericalStability("StandardScaler.Fit", col, 0); err != nil {
			return err
		}
		if s.WithMean {
			s.Mean[j] = stat.Mean(col, nil)
		}

		s.Scale[j] = 1.0
		if !s.WithStd || r-s.DDOF <= 0 {
			continue
		}
		// 平均を引かない場合も分散は平均まわりで計算する
		mu := stat.Mean(col, nil)
		ss := 0.0
		for _, v := range col {
			d := v - mu
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(r-s.DDOF))
		if sd >= constantTolerance {
			s.Scale[j] = sd
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler", "Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
			}
		}
	})
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler", "InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
		"ddof":      s.DDOF,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, ddof=%d)", s.WithMean, s.WithStd, s.DDOF)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, ddof=%d, n_features=%d)",
		s.WithMean, s.WithStd, s.DDOF, nFeatures)
}

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin は学習データの最小値
	DataMin []float64

	// Scale は各特徴量の範囲 (max - min)。定数列は1
	Scale []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// RestoreMinMaxScaler rebuilds a fitted scaler from exported statistics.
func RestoreMinMaxScaler(dataMin, scale []float64, featureRange [2]float64) (*MinMaxScaler, error) {
	if len(dataMin) == 0 || len(dataMin) != len(scale) {
		return nil, errors.NewValidationError("scale", "min and scale must be non-empty and equal length", len(scale))
	}
	m := NewMinMaxScaler(featureRange)
	m.DataMin = append([]float64(nil), dataMin...)
	m.Scale = append([]float64(nil), scale...)
	m.state.SetDimensions(len(dataMin), 0)
	m.state.SetFitted()
	return m, nil
}

// Kind implements Scaler.
func (m *MinMaxScaler) Kind() string { return KindMinMax }

// IsFitted reports whether Fit has completed.
func (m *MinMaxScaler) IsFitted() bool { return m.state.IsFitted() }

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[1] <= m.FeatureRange[0] {
		return errors.NewValidationError("feature_range", "max must be greater than min", m.FeatureRange)
	}

	m.state.Reset()
	m.DataMin = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if err := errors.CheckNumericalStability("MinMaxScaler.Fit", []float64{lo, hi}, 0); err != nil {
			return err
		}
		m.DataMin[j] = lo
		m.Scale[j] = 1.0
		if hi-lo >= constantTolerance {
			m.Scale[j] = hi - lo
		}
	}

	m.state.SetDimensions(c, r)
	m.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler", "Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	parallel.ParallelizeWithThreshold(r, parallelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, (X.At(i, j)-m.DataMin[j])/m.Scale[j]*width+m.FeatureRange[0])
			}
		}
	})
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler", "InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-m.FeatureRange[0])/width*m.Scale[j]+m.DataMin[j])
		}
	}
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])", m.FeatureRange[0], m.FeatureRange[1])
}
