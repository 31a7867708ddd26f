package training

import (
	"fmt"

	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/model/gbdt"
	"credit-risk-engine/internal/pipeline"
)

// Evaluate scores X with model and compares against y.
func Evaluate(model *gbdt.Model, X [][]float64, y []int) (*artifact.Metrics, error) {
	K := len(pipeline.ClassNames)
	confusion := make([][]int, K)
	for k := range confusion {
		confusion[k] = make([]int, K)
	}

	correct := 0
	for i, x := range X {
		probs, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		pred := argmax(probs)
		confusion[y[i]][pred]++
		if pred == y[i] {
			correct++
		}
	}

	m := &artifact.Metrics{
		PerClass:        make(map[string]artifact.ClassMetrics, K),
		ConfusionMatrix: confusion,
		TestRows:        len(X),
	}
	if len(X) > 0 {
		m.Accuracy = float64(correct) / float64(len(X))
	}

	for k, name := range pipeline.ClassNames {
		tp := confusion[k][k]
		support, predicted := 0, 0
		for j := 0; j < K; j++ {
			support += confusion[k][j]
			predicted += confusion[j][k]
		}
		cm := artifact.ClassMetrics{
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		m.PerClass[name] = cm
	}
	return m, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
