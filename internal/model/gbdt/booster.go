package gbdt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// minHessian keeps leaf weights finite when a probability saturates.
const minHessian = 1e-16

// Model is a trained booster. Trees[r][k] is the tree of class k added in
// round r.
type Model struct {
	Params      Params    `json:"params"`
	NumFeatures int       `json:"num_features"`
	BaseScore   []float64 `json:"base_score"`
	Trees       [][]Tree  `json:"trees"`
}

// Train fits a softmax booster on X with integer labels y in
// [0, NumClasses). The class trees of a round are grown concurrently;
// each goroutine writes only its own slot, so the result is identical to
// a sequential build.
func Train(ctx context.Context, X [][]float64, y []int, p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, errors.New("gbdt: empty training matrix")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("gbdt: %d rows but %d labels", len(X), len(y))
	}

	numFeatures := len(X[0])
	for i, row := range X {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("gbdt: row %d has %d features, want %d", i, len(row), numFeatures)
		}
		for f, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("gbdt: row %d feature %d is not finite", i, f)
			}
		}
		if y[i] < 0 || y[i] >= p.NumClasses {
			return nil, fmt.Errorf("gbdt: row %d label %d out of range", i, y[i])
		}
	}

	K, n := p.NumClasses, len(X)
	m := &Model{
		Params:      p,
		NumFeatures: numFeatures,
		BaseScore:   logPriors(y, K),
		Trees:       make([][]Tree, 0, p.NumRounds),
	}

	data := newBinned(X, numFeatures, p.MaxBins)
	rng := rand.New(rand.NewSource(p.Seed))

	margins := make([][]float64, n)
	for i := range margins {
		margins[i] = append([]float64(nil), m.BaseScore...)
	}
	probs := make([][]float64, n)

	for round := 0; round < p.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range margins {
			probs[i] = softmax(margins[i])
		}
		rows := sampleRows(rng, n, p.Subsample)

		trees := make([]Tree, K)
		var g errgroup.Group
		for k := 0; k < K; k++ {
			k := k
			g.Go(func() error {
				grad := make([]float64, n)
				hess := make([]float64, n)
				for i := 0; i < n; i++ {
					pk := probs[i][k]
					target := 0.0
					if y[i] == k {
						target = 1
					}
					grad[i] = pk - target
					hess[i] = math.Max(pk*(1-pk), minHessian)
				}
				b := &treeBuilder{data: data, params: p, grad: grad, hess: hess}
				trees[k] = b.build(rows)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, row := range X {
			for k := range trees {
				margins[i][k] += trees[k].Predict(row)
			}
		}
		m.Trees = append(m.Trees, trees)
	}
	return m, nil
}

// logPriors returns log class frequencies with add-one smoothing so an
// absent class still has a finite base score.
func logPriors(y []int, K int) []float64 {
	counts := make([]float64, K)
	for _, label := range y {
		counts[label]++
	}
	total := float64(len(y) + K)
	out := make([]float64, K)
	for k, c := range counts {
		out[k] = math.Log((c + 1) / total)
	}
	return out
}

func sampleRows(rng *rand.Rand, n int, rate float64) []int {
	rows := make([]int, 0, n)
	if rate >= 1 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
		return rows
	}
	for i := 0; i < n; i++ {
		if rng.Float64() < rate {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.Intn(n))
	}
	return rows
}

func softmax(margins []float64) []float64 {
	lse := floats.LogSumExp(margins)
	out := make([]float64, len(margins))
	for k, v := range margins {
		out[k] = math.Exp(v - lse)
	}
	return out
}

func (m *Model) check(x []float64) error {
	if len(x) != m.NumFeatures {
		return fmt.Errorf("gbdt: got %d features, want %d", len(x), m.NumFeatures)
	}
	for f, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("gbdt: feature %d is not finite", f)
		}
	}
	return nil
}

// Margins returns the raw per-class scores of x.
func (m *Model) Margins(x []float64) ([]float64, error) {
	if err := m.check(x); err != nil {
		return nil, err
	}
	out := append([]float64(nil), m.BaseScore...)
	for _, round := range m.Trees {
		for k := range round {
			out[k] += round[k].Predict(x)
		}
	}
	return out, nil
}

// Predict returns the class probabilities of x. They are non-negative and
// sum to one up to floating point error.
func (m *Model) Predict(x []float64) ([]float64, error) {
	margins, err := m.Margins(x)
	if err != nil {
		return nil, err
	}
	return softmax(margins), nil
}

// Explanation splits one class margin into a bias and per-feature terms.
// Bias plus the sum of Contributions equals Margin.
type Explanation struct {
	Class         int
	Bias          float64
	Margin        float64
	Contributions []float64
}

// Explain attributes the margin of class to the features of x by walking
// every tree's decision path.
func (m *Model) Explain(x []float64, class int) (*Explanation, error) {
	if err := m.check(x); err != nil {
		return nil, err
	}
	if class < 0 || class >= m.Params.NumClasses {
		return nil, fmt.Errorf("gbdt: class %d out of range", class)
	}

	e := &Explanation{
		Class:         class,
		Bias:          m.BaseScore[class],
		Contributions: make([]float64, m.NumFeatures),
	}
	for _, round := range m.Trees {
		e.Bias += round[class].attribute(x, e.Contributions)
	}
	e.Margin = e.Bias + floats.Sum(e.Contributions)
	return e, nil
}

// FeatureImportance sums split gains per feature over all trees.
func (m *Model) FeatureImportance() []float64 {
	out := make([]float64, m.NumFeatures)
	for _, round := range m.Trees {
		for _, t := range round {
			for _, n := range t.Nodes {
				if !n.IsLeaf() {
					out[n.Feature] += n.Gain
				}
			}
		}
	}
	return out
}

// Validate checks structural consistency of a decoded model.
func (m *Model) Validate() error {
	if err := m.Params.Validate(); err != nil {
		return err
	}
	if m.NumFeatures < 1 {
		return errors.New("gbdt: model has no features")
	}
	if len(m.BaseScore) != m.Params.NumClasses {
		return fmt.Errorf("gbdt: base score has %d classes, want %d", len(m.BaseScore), m.Params.NumClasses)
	}
	if len(m.Trees) == 0 {
		return errors.New("gbdt: model has no trees")
	}
	for r, round := range m.Trees {
		if len(round) != m.Params.NumClasses {
			return fmt.Errorf("gbdt: round %d has %d trees, want %d", r, len(round), m.Params.NumClasses)
		}
		for k := range round {
			if err := round[k].validate(m.NumFeatures); err != nil {
				return fmt.Errorf("gbdt: round %d class %d: %w", r, k, err)
			}
		}
	}
	return nil
}
