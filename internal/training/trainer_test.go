package training

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Model.NumRounds = 30
	cfg.Model.MaxDepth = 3
	cfg.Model.LearningRate = 0.3
	cfg.ModelVersion = "test-model"
	return cfg
}

func TestTrainer_Execute(t *testing.T) {
	trainer := NewTrainer(createTestConfig(), logger.NewTestLogger(t))
	snapshot := filepath.Join(t.TempDir(), "snap", "train.csv")

	out, err := trainer.Execute(context.Background(), &Input{
		Dataset:      Synthetic(600, 7),
		SnapshotPath: snapshot,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", out.Artifact.ModelVersion)
	assert.NoError(t, out.Artifact.Verify())
	assert.Equal(t, 600, out.Metrics.TrainRows+out.Metrics.TestRows)
	assert.InDelta(t, 120, out.Metrics.TestRows, 2)
	assert.Greater(t, out.Metrics.Accuracy, 0.9)
	assert.Len(t, out.Metrics.PerClass, 3)
	assert.Greater(t, out.FitReport.Unrecoverable[pipeline.FieldMonthlyBalance], 0)
	assert.Greater(t, out.FitReport.Capped[pipeline.FieldAge], 0)

	imp := out.Importance
	assert.Greater(t, imp[pipeline.FieldCreditUtilizationRatio]+imp[pipeline.FeatureUtilizationProxy], imp[pipeline.FieldInterestRate])

	f, err := os.Open(snapshot)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, out.Metrics.TrainRows+1)
	assert.Equal(t, pipeline.TargetField, rows[0][len(rows[0])-1])
}

func TestTrainer_Reproducible(t *testing.T) {
	cfg := createTestConfig()
	cfg.Model.Subsample = 0.9
	ds := Synthetic(300, 11)

	a, err := NewTrainer(cfg, logger.NewNoOpLogger()).Execute(context.Background(), &Input{Dataset: ds})
	require.NoError(t, err)
	b, err := NewTrainer(cfg, logger.NewNoOpLogger()).Execute(context.Background(), &Input{Dataset: ds})
	require.NoError(t, err)

	assert.Equal(t, a.Artifact.Checksum, b.Artifact.Checksum)
	assert.Equal(t, a.Artifact.Pipeline, b.Artifact.Pipeline)
}

func TestTrainer_InvalidDataset(t *testing.T) {
	trainer := NewTrainer(createTestConfig(), logger.NewNoOpLogger())

	_, err := trainer.Execute(context.Background(), &Input{Dataset: &Dataset{}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatasetInvalid))

	ds := Synthetic(50, 1)
	for i := range ds.Labels {
		ds.Labels[i] = pipeline.ClassGood
	}
	_, err = trainer.Execute(context.Background(), &Input{Dataset: ds})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatasetInvalid))
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := Synthetic(100, 3)
	b := Synthetic(100, 3)
	assert.Equal(t, a, b)
	assert.Len(t, a.Rows, 100)

	counts := a.ClassCounts()
	for _, c := range counts {
		assert.Greater(t, c, 0)
	}
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		labels = append(labels, i%4%3)
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)

	again, _, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, again)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d assigned twice", i)
		seen[i] = true
	}

	_, _, err = StratifiedSplit(labels, 1.2, 42)
	assert.Error(t, err)
}

func TestEvaluate_ConfusionMatrix(t *testing.T) {
	out, err := NewTrainer(createTestConfig(), logger.NewNoOpLogger()).Execute(context.Background(), &Input{Dataset: Synthetic(300, 5)})
	require.NoError(t, err)

	total := 0
	for _, row := range out.Metrics.ConfusionMatrix {
		for _, c := range row {
			total += c
		}
	}
	assert.Equal(t, out.Metrics.TestRows, total)

	support := 0
	for _, cm := range out.Metrics.PerClass {
		support += cm.Support
		assert.GreaterOrEqual(t, cm.F1, 0.0)
		assert.LessOrEqual(t, cm.F1, 1.0)
	}
	assert.Equal(t, total, support)
}

func TestConfigFromSettings(t *testing.T) {
	cfg, err := ConfigFromSettings(settingsFixture(), "v1")
	require.NoError(t, err)

	assert.Equal(t, pipeline.Bounds{Lower: 18, Upper: 100}, cfg.Pipeline.Capping.Fixed[pipeline.FieldAge])
	assert.Equal(t, pipeline.FieldOccupation, cfg.Pipeline.GroupKey)
	assert.Equal(t, 3, cfg.Model.NumClasses)
	assert.Equal(t, "v1", cfg.ModelVersion)

	bad := settingsFixture()
	bad.GroupKey = "Planet"
	_, err = ConfigFromSettings(bad, "v1")
	assert.Error(t, err)
}
