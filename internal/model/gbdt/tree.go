package gbdt

import "fmt"

// Leaf marks a node without a split.
const Leaf = -1

// Node is one entry of a flattened regression tree. For a split node a
// sample goes Left when x[Feature] <= Threshold. Value is the leaf output
// for leaves and the cover-weighted mean of the children for splits;
// Cover is the hessian sum of the training rows that reached the node.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
	Gain      float64 `json:"gain,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Feature == Leaf }

// Tree is a regression tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value reached by x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		i = t.next(i, x)
	}
	return t.Nodes[i].Value
}

func (t *Tree) next(i int, x []float64) int {
	n := t.Nodes[i]
	if x[n.Feature] <= n.Threshold {
		return n.Left
	}
	return n.Right
}

// attribute walks x's path and credits each split's change in expected
// value to the split feature. Returns the root value as bias.
func (t *Tree) attribute(x []float64, contrib []float64) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		child := t.next(i, x)
		contrib[t.Nodes[i].Feature] += t.Nodes[child].Value - t.Nodes[i].Value
		i = child
	}
	return t.Nodes[0].Value
}

func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// treeBuilder grows one tree from gradient statistics over binned data.
type treeBuilder struct {
	data   *binned
	params Params
	grad   []float64
	hess   []float64
	nodes  []Node
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var G, H float64
	for _, r := range rows {
		G += b.grad[r]
		H += b.hess[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: Leaf, Cover: H})

	best, ok := split{}, false
	if depth < b.params.MaxDepth && len(rows) > 1 {
		best, ok = b.bestSplit(rows, G, H)
	}
	if !ok {
		b.nodes[idx].Value = -G / (H + b.params.Lambda) * b.params.LearningRate
		return idx
	}

	codes := b.data.bins[best.feature]
	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if int(codes[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	ln, rn := b.nodes[l], b.nodes[r]
	b.nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: b.data.cuts[best.feature][best.bin],
		Left:      l,
		Right:     r,
		Value:     (ln.Cover*ln.Value + rn.Cover*rn.Value) / (ln.Cover + rn.Cover),
		Cover:     H,
		Gain:      best.gain,
	}
	return idx
}

// bestSplit scans every feature histogram for the split with the largest
// positive regularised gain. Ties keep the lowest feature and bin.
func (b *treeBuilder) bestSplit(rows []int, G, H float64) (split, bool) {
	lambda := b.params.Lambda
	parent := G * G / (H + lambda)
	best := split{gain: 0}
	found := false

	for f, cuts := range b.data.cuts {
		nb := len(cuts)
		if nb < 2 {
			continue
		}
		hg := make([]float64, nb)
		hh := make([]float64, nb)
		hc := make([]int, nb)
		codes := b.data.bins[f]
		for _, r := range rows {
			c := codes[r]
			hg[c] += b.grad[r]
			hh[c] += b.hess[r]
			hc[c]++
		}

		var GL, HL float64
		var nl int
		for bin := 0; bin < nb-1; bin++ {
			GL += hg[bin]
			HL += hh[bin]
			nl += hc[bin]
			GR, HR, nr := G-GL, H-HL, len(rows)-nl
			if nl == 0 || nr == 0 {
				continue
			}
			if HL < b.params.MinChildWeight || HR < b.params.MinChildWeight {
				continue
			}
			gain := 0.5*(GL*GL/(HL+lambda)+GR*GR/(HR+lambda)-parent) - b.params.Gamma
			if gain > best.gain {
				best = split{feature: f, bin: bin, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
