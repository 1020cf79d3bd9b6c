package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// ModelWeights is the portable JSON form of a fitted linear model.
type ModelWeights struct {
	// ModelType はモデルの種類（ElasticNet, LinearRegression等）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`

	// Features names the coefficients in order (optional).
	Features []string `json:"features,omitempty"`

	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata holds fit statistics and the coefficient checksum.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewValidationError("features", "must name every coefficient", len(mw.Features))
	}
	return nil
}

// Checksum hashes the coefficients so an import can detect corruption.
func Checksum(coefficients []float64) string {
	data, _ := json.Marshal(coefficients)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChecksum compares the stored checksum, if any, against the coefficients.
func (mw *ModelWeights) VerifyChecksum() error {
	stored, ok := mw.Metadata["checksum"].(string)
	if !ok {
		return nil
	}
	if stored != Checksum(mw.Coefficients) {
		return errors.NewValueError("ModelWeights.VerifyChecksum", "checksum mismatch: weights may be corrupted")
	}
	return nil
}
