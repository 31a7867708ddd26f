// internal/training/trainer.go
package training

import (
	"context"
	"fmt"
	"time"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/model/gbdt"
	"credit-risk-engine/internal/pipeline"
)

type Trainer struct {
	config *Config
	logger logger.Logger
}

func NewTrainer(config *Config, log logger.Logger) *Trainer {
	return &Trainer{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "trainer"}),
	}
}

// Execute splits the dataset, fits the pipeline on the training part,
// trains the booster, evaluates on the held-out part and returns a
// checksummed artifact. The same dataset and config always produce the
// same artifact checksum.
func (t *Trainer) Execute(ctx context.Context, input *Input) (*Output, error) {
	ds := input.Dataset
	if ds == nil || ds.Len() == 0 {
		return nil, apperrors.NewDatasetInvalidError("dataset is empty")
	}
	counts := ds.ClassCounts()
	for k, c := range counts {
		if c == 0 {
			return nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("class %s has no rows", pipeline.ClassNames[k]))
		}
	}

	start := time.Now()
	t.logger.Info("training started", map[string]interface{}{
		"rows":        ds.Len(),
		"classCounts": counts,
		"testSize":    t.config.TestSize,
		"seed":        t.config.Seed,
	})

	trainIdx, testIdx, err := StratifiedSplit(ds.Labels, t.config.TestSize, t.config.Seed)
	if err != nil {
		return nil, apperrors.NewDatasetInvalidError(err.Error())
	}
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)

	params, fitReport, err := pipeline.Fit(train.Rows, t.config.Pipeline)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}
	t.logger.Info("pipeline fitted", map[string]interface{}{
		"unrecoverable": fitReport.Unrecoverable,
		"capped":        fitReport.Capped,
		"imputed":       fitReport.Imputed,
	})

	Xtrain, err := params.TransformBatch(train.Rows)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}
	Xtest, err := params.TransformBatch(test.Rows)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}

	modelParams := t.config.Model
	modelParams.NumClasses = len(pipeline.ClassNames)
	model, err := gbdt.Train(ctx, Xtrain, train.Labels, modelParams)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}

	metrics, err := Evaluate(model, Xtest, test.Labels)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}
	metrics.TrainRows = train.Len()

	version := t.config.ModelVersion
	if version == "" {
		version = "gbdt-" + time.Now().UTC().Format("20060102T150405Z")
	}
	art, err := artifact.New(params, model, version, metrics)
	if err != nil {
		return nil, apperrors.NewTrainingFailedError(err)
	}

	if input.SnapshotPath != "" {
		if err := WriteSnapshot(input.SnapshotPath, Xtrain, train.Labels); err != nil {
			return nil, apperrors.NewTrainingFailedError(err)
		}
	}

	importance := make(map[string]float64, len(art.FeatureNames))
	for i, v := range model.FeatureImportance() {
		importance[art.FeatureNames[i]] = v
	}

	t.logger.Info("training completed", map[string]interface{}{
		"modelVersion": version,
		"accuracy":     metrics.Accuracy,
		"trainRows":    metrics.TrainRows,
		"testRows":     metrics.TestRows,
		"checksum":     art.Checksum,
		"duration":     time.Since(start).String(),
	})

	return &Output{
		Artifact:   art,
		FitReport:  fitReport,
		Metrics:    metrics,
		Importance: importance,
	}, nil
}
