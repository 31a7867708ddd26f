// Package gbdt implements a multiclass gradient-boosted decision tree
// classifier with a softmax objective, histogram split finding and
// per-feature path attributions.
package gbdt

import "fmt"

// Params are the booster hyperparameters.
type Params struct {
	NumClasses     int     `json:"num_classes"`
	NumRounds      int     `json:"num_rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	Subsample      float64 `json:"subsample"`
	MaxBins        int     `json:"max_bins"`
	Seed           int64   `json:"seed"`
}

// DefaultParams returns the production hyperparameters for three classes.
func DefaultParams() Params {
	return Params{
		NumClasses:     3,
		NumRounds:      200,
		MaxDepth:       6,
		LearningRate:   0.1,
		Lambda:         1.0,
		MinChildWeight: 1.0,
		Subsample:      1.0,
		MaxBins:        255,
		Seed:           42,
	}
}

// Validate checks ranges.
func (p Params) Validate() error {
	switch {
	case p.NumClasses < 2:
		return fmt.Errorf("gbdt: num_classes must be at least 2, got %d", p.NumClasses)
	case p.NumRounds < 1:
		return fmt.Errorf("gbdt: num_rounds must be positive, got %d", p.NumRounds)
	case p.MaxDepth < 1:
		return fmt.Errorf("gbdt: max_depth must be positive, got %d", p.MaxDepth)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("gbdt: learning_rate must be in (0, 1], got %v", p.LearningRate)
	case p.Lambda < 0 || p.Gamma < 0 || p.MinChildWeight < 0:
		return fmt.Errorf("gbdt: lambda, gamma and min_child_weight must be non-negative")
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("gbdt: subsample must be in (0, 1], got %v", p.Subsample)
	case p.MaxBins < 2 || p.MaxBins > 255:
		return fmt.Errorf("gbdt: max_bins must be in 2..255, got %d", p.MaxBins)
	}
	return nil
}
