// internal/training/config.go
package training

import (
	"fmt"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/model/gbdt"
	"credit-risk-engine/internal/pipeline"
)

// Config is the resolved training configuration.
type Config struct {
	Pipeline     pipeline.Config
	Model        gbdt.Params
	TestSize     float64
	Seed         int64
	ModelVersion string
}

// DefaultConfig mirrors the shipped configuration.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: pipeline.DefaultConfig(),
		Model:    gbdt.DefaultParams(),
		TestSize: 0.2,
		Seed:     42,
	}
}

// ConfigFromSettings converts the training section of the application
// configuration. Capping keys are matched to catalogue fields
// case-insensitively.
func ConfigFromSettings(t config.TrainingConfig, modelVersion string) (*Config, error) {
	fixed := make(map[string]pipeline.Bounds, len(t.Capping.Fixed))
	for key, b := range t.Capping.Fixed {
		name, ok := pipeline.CanonicalName(key)
		if !ok {
			return nil, fmt.Errorf("training.capping.fixed: unknown field %q", key)
		}
		fixed[name] = pipeline.Bounds{Lower: b.Lower, Upper: b.Upper}
	}

	groupKey, ok := pipeline.CanonicalName(t.GroupKey)
	if !ok {
		return nil, fmt.Errorf("training.group_key: unknown field %q", t.GroupKey)
	}

	return &Config{
		Pipeline: pipeline.Config{
			GroupKey: groupKey,
			Capping: pipeline.CappingConfig{
				Fixed:           fixed,
				LowerPercentile: t.Capping.LowerPercentile,
				UpperPercentile: t.Capping.UpperPercentile,
			},
			Features: pipeline.FeatureConfig{
				DTISentinel:            t.Features.DTISentinel,
				CardLimitProxy:         t.Features.CardLimitProxy,
				InconsistencyThreshold: t.Features.InconsistencyThreshold,
			},
		},
		Model: gbdt.Params{
			NumClasses:     len(pipeline.ClassNames),
			NumRounds:      t.Model.NumRounds,
			MaxDepth:       t.Model.MaxDepth,
			LearningRate:   t.Model.LearningRate,
			Lambda:         t.Model.Lambda,
			Gamma:          t.Model.Gamma,
			MinChildWeight: t.Model.MinChildWeight,
			Subsample:      t.Model.Subsample,
			MaxBins:        t.Model.MaxBins,
			Seed:           t.Seed,
		},
		TestSize:     t.TestSize,
		Seed:         t.Seed,
		ModelVersion: modelVersion,
	}, nil
}
