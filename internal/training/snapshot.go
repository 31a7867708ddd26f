package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"credit-risk-engine/internal/pipeline"
)

// WriteSnapshot stores the cleaned training matrix with its labels as CSV,
// one column per feature followed by Credit_Score.
func WriteSnapshot(path string, X [][]float64, y []int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(pipeline.FeatureNames(), pipeline.TargetField)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range X {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(row)] = pipeline.ClassNames[y[i]]
		if err := w.Write(record); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return f.Close()
}
