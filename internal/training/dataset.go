package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/pipeline"
)

// droppedColumns are identifiers and free-text columns that never reach
// the pipeline.
var droppedColumns = map[string]struct{}{
	"ID":                 {},
	"Customer_ID":        {},
	"Name":               {},
	"SSN":                {},
	"Month":              {},
	"Type_of_Loan":       {},
	"Credit_History_Age": {},
}

// Dataset is a labelled set of raw applicant records.
type Dataset struct {
	Rows   []pipeline.RawRecord
	Labels []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Subset returns the rows at idx in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Rows:   make([]pipeline.RawRecord, len(idx)),
		Labels: make([]int, len(idx)),
	}
	for i, j := range idx {
		out.Rows[i] = d.Rows[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

// ClassCounts returns the number of rows per class.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(pipeline.ClassNames))
	for _, l := range d.Labels {
		counts[l]++
	}
	return counts
}

// LoadReport describes what the loader skipped.
type LoadReport struct {
	Rows           int      `json:"rows"`
	DroppedLabels  int      `json:"dropped_labels"`
	DroppedColumns []string `json:"dropped_columns"`
	IgnoredColumns []string `json:"ignored_columns,omitempty"`
}

// LoadCSV reads a raw training file with a header row.
func LoadCSV(path string) (*Dataset, *LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("open %s: %v", path, err))
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses raw training data. Cells are kept as text so numeric
// repair sees exactly what the file contains; empty cells become missing.
// Rows whose Credit_Score is not a known class are dropped.
func ReadCSV(r io.Reader) (*Dataset, *LoadReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("read header: %v", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	report := &LoadReport{}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if _, drop := droppedColumns[name]; drop {
			report.DroppedColumns = append(report.DroppedColumns, name)
			continue
		}
		if _, known := pipeline.FieldByName(name); !known && name != pipeline.TargetField {
			report.IgnoredColumns = append(report.IgnoredColumns, name)
			continue
		}
		columns[name] = i
	}

	var missing []string
	for _, f := range pipeline.Fields {
		if _, ok := columns[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if _, ok := columns[pipeline.TargetField]; !ok {
		missing = append(missing, pipeline.TargetField)
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, apperrors.NewDatasetInvalidError(fmt.Sprintf("line %d: %v", line, err))
		}

		label, ok := pipeline.ClassIndex(cell(record, columns[pipeline.TargetField]))
		if !ok {
			report.DroppedLabels++
			continue
		}

		row := make(pipeline.RawRecord, len(pipeline.Fields))
		for _, f := range pipeline.Fields {
			if v := cell(record, columns[f.Name]); v != "" {
				row[f.Name] = v
			}
		}
		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, label)
	}

	report.Rows = ds.Len()
	if ds.Len() == 0 {
		return nil, report, apperrors.NewDatasetInvalidError("no labelled rows")
	}
	return ds, report, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
