package gbdt

import "sort"

// binned is a column-major quantised copy of the training matrix. cuts[f]
// holds the sorted upper edges of feature f's bins; the last edge is the
// column maximum.
type binned struct {
	cuts [][]float64
	bins [][]uint8
}

func newBinned(X [][]float64, numFeatures, maxBins int) *binned {
	b := &binned{
		cuts: make([][]float64, numFeatures),
		bins: make([][]uint8, numFeatures),
	}
	column := make([]float64, len(X))
	for f := 0; f < numFeatures; f++ {
		for i, row := range X {
			column[i] = row[f]
		}
		cuts := quantileCuts(column, maxBins)
		codes := make([]uint8, len(X))
		for i, row := range X {
			codes[i] = uint8(sort.SearchFloat64s(cuts, row[f]))
		}
		b.cuts[f] = cuts
		b.bins[f] = codes
	}
	return b
}

// quantileCuts returns at most maxBins sorted distinct upper edges. With
// few distinct values every value gets its own bin.
func quantileCuts(column []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), column...)
	sort.Float64s(sorted)

	unique := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) <= maxBins {
		return unique
	}

	n := len(sorted)
	cuts := make([]float64, 0, maxBins)
	for i := 1; i <= maxBins; i++ {
		edge := sorted[i*n/maxBins-1]
		if len(cuts) == 0 || edge > cuts[len(cuts)-1] {
			cuts = append(cuts, edge)
		}
	}
	return cuts
}
