// Package artifact persists the fitted pipeline parameters and the trained
// classifier as one versioned, checksummed file.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/model/gbdt"
	"credit-risk-engine/internal/pipeline"
)

// FormatVersion identifies the file layout.
const FormatVersion = "credit-artifact/1"

// ClassMetrics are the per-class evaluation figures.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics summarise evaluation on the held-out split.
type Metrics struct {
	Accuracy        float64                 `json:"accuracy"`
	PerClass        map[string]ClassMetrics `json:"per_class"`
	ConfusionMatrix [][]int                 `json:"confusion_matrix"`
	TrainRows       int                     `json:"train_rows"`
	TestRows        int                     `json:"test_rows"`
}

// Artifact bundles everything serving needs. It is immutable once loaded.
type Artifact struct {
	FormatVersion        string           `json:"format_version"`
	PipelineVersion      string           `json:"pipeline_version"`
	ModelVersion         string           `json:"model_version"`
	FeatureSchemaVersion string           `json:"feature_schema_version"`
	FeatureNames         []string         `json:"feature_names"`
	ClassNames           []string         `json:"class_names"`
	CreatedAt            time.Time        `json:"created_at"`
	Metrics              *Metrics         `json:"metrics,omitempty"`
	Pipeline             *pipeline.Params `json:"pipeline"`
	Model                *gbdt.Model      `json:"model"`
	Checksum             string           `json:"checksum"`
}

// New wraps fitted parameters and a model with the compiled version
// identifiers and a checksum.
func New(params *pipeline.Params, model *gbdt.Model, modelVersion string, metrics *Metrics) (*Artifact, error) {
	a := &Artifact{
		FormatVersion:        FormatVersion,
		PipelineVersion:      pipeline.Version,
		ModelVersion:         modelVersion,
		FeatureSchemaVersion: pipeline.FeatureSchemaVersion,
		FeatureNames:         pipeline.FeatureNames(),
		ClassNames:           append([]string(nil), pipeline.ClassNames...),
		CreatedAt:            time.Now().UTC(),
		Metrics:              metrics,
		Pipeline:             params,
		Model:                model,
	}
	sum, err := a.ComputeChecksum()
	if err != nil {
		return nil, err
	}
	a.Checksum = sum
	return a, nil
}

// ComputeChecksum hashes the canonical JSON of the fitted content.
// encoding/json sorts map keys, so equal content always hashes equally.
func (a *Artifact) ComputeChecksum() (string, error) {
	payload, err := json.Marshal(struct {
		Pipeline     *pipeline.Params `json:"pipeline"`
		Model        *gbdt.Model      `json:"model"`
		FeatureNames []string         `json:"feature_names"`
	}{a.Pipeline, a.Model, a.FeatureNames})
	if err != nil {
		return "", fmt.Errorf("artifact: encode checksum payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Save writes the artifact atomically: a temporary file in the target
// directory is renamed over path.
func Save(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("artifact: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads and verifies an artifact. Every failure is fatal for serving.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewArtifactLoadFailedError(path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, apperrors.NewArtifactLoadFailedError(path, err)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Verify checks versions, layout and checksum against the compiled code.
func (a *Artifact) Verify() error {
	if a.FormatVersion != FormatVersion {
		return apperrors.NewArtifactVersionMismatchError("format_version", FormatVersion, a.FormatVersion)
	}
	if a.PipelineVersion != pipeline.Version {
		return apperrors.NewArtifactVersionMismatchError("pipeline_version", pipeline.Version, a.PipelineVersion)
	}
	if a.FeatureSchemaVersion != pipeline.FeatureSchemaVersion {
		return apperrors.NewArtifactVersionMismatchError("feature_schema_version", pipeline.FeatureSchemaVersion, a.FeatureSchemaVersion)
	}
	if a.Pipeline == nil || a.Model == nil {
		return apperrors.NewArtifactLoadFailedError("", fmt.Errorf("artifact is missing pipeline or model"))
	}
	if a.Pipeline.Version != pipeline.Version {
		return apperrors.NewArtifactVersionMismatchError("pipeline.version", pipeline.Version, a.Pipeline.Version)
	}
	if !reflect.DeepEqual(a.FeatureNames, pipeline.FeatureNames()) {
		return apperrors.NewFeatureSchemaMismatchError(
			fmt.Sprintf("artifact has %d features %v, compiled layout has %d", len(a.FeatureNames), a.FeatureNames, len(pipeline.FeatureNames())))
	}
	if !reflect.DeepEqual(a.ClassNames, pipeline.ClassNames) {
		return apperrors.NewFeatureSchemaMismatchError(fmt.Sprintf("artifact classes %v, want %v", a.ClassNames, pipeline.ClassNames))
	}
	if a.Model.NumFeatures != len(a.FeatureNames) || a.Model.Params.NumClasses != len(a.ClassNames) {
		return apperrors.NewFeatureSchemaMismatchError(
			fmt.Sprintf("model expects %d features and %d classes", a.Model.NumFeatures, a.Model.Params.NumClasses))
	}
	if err := a.Pipeline.Validate(); err != nil {
		return apperrors.NewArtifactLoadFailedError("", err)
	}
	if err := a.Model.Validate(); err != nil {
		return apperrors.NewArtifactLoadFailedError("", err)
	}

	sum, err := a.ComputeChecksum()
	if err != nil {
		return apperrors.NewArtifactLoadFailedError("", err)
	}
	if sum != a.Checksum {
		return apperrors.NewArtifactLoadFailedError("", fmt.Errorf("checksum mismatch: stored %s, computed %s", a.Checksum, sum))
	}
	return nil
}
