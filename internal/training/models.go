// internal/training/models.go
package training

import (
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/pipeline"
)

type Input struct {
	Dataset      *Dataset
	SnapshotPath string
}

type Output struct {
	Artifact   *artifact.Artifact
	FitReport  *pipeline.FitReport
	Metrics    *artifact.Metrics
	Importance map[string]float64
}
