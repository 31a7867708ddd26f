package pipeline

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// noise matches every character that cannot be part of a plain decimal:
// thousands separators, currency symbols, trailing underscores.
var noise = regexp.MustCompile(`[^\d.-]`)

// RepairOutcome classifies what repair did to one cell.
type RepairOutcome int

const (
	// RepairClean means the value parsed without modification.
	RepairClean RepairOutcome = iota
	// RepairStripped means noise characters were removed before parsing.
	RepairStripped
	// RepairMissing means the cell was absent, null or blank.
	RepairMissing
	// RepairUnrecoverable means the cell held text that is not a number
	// even after stripping noise. The value is treated as missing.
	RepairUnrecoverable
)

// RepairValue converts one raw cell to a float64. Missing and
// unrecoverable cells return NaN. Finite numbers pass through unchanged,
// so repair is idempotent on clean data.
func RepairValue(raw interface{}) (float64, RepairOutcome) {
	switch v := raw.(type) {
	case nil:
		return math.NaN(), RepairMissing
	case float64:
		return number(v)
	case float32:
		return number(float64(v))
	case int:
		return float64(v), RepairClean
	case int32:
		return float64(v), RepairClean
	case int64:
		return float64(v), RepairClean
	case json.Number:
		return RepairString(v.String())
	case string:
		return RepairString(v)
	default:
		return math.NaN(), RepairUnrecoverable
	}
}

func number(v float64) (float64, RepairOutcome) {
	switch {
	case math.IsNaN(v):
		return v, RepairMissing
	case math.IsInf(v, 0):
		return math.NaN(), RepairUnrecoverable
	default:
		return v, RepairClean
	}
}

// RepairString strips noise from s and parses what remains:
// "19,000.00_" is 19000, "23_" is 23, "_" and "1-2" are unrecoverable.
func RepairString(s string) (float64, RepairOutcome) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), RepairMissing
	}

	cleaned := noise.ReplaceAllString(s, "")
	if cleaned == "" {
		return math.NaN(), RepairUnrecoverable
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN(), RepairUnrecoverable
	}

	if cleaned != s {
		return v, RepairStripped
	}
	return v, RepairClean
}

// RepairColumn repairs a whole column and reports how many cells could not
// be recovered. Failures never abort the column.
func RepairColumn(cells []interface{}) ([]float64, int) {
	out := make([]float64, len(cells))
	unrecoverable := 0
	for i, cell := range cells {
		v, outcome := RepairValue(cell)
		if outcome == RepairUnrecoverable {
			unrecoverable++
		}
		out[i] = v
	}
	return out, unrecoverable
}

// repairRecord builds a Record from raw input. Numeric cells go through
// RepairValue; categorical cells are trimmed.
func repairRecord(raw RawRecord, report *Report) *Record {
	rec := newRecord()
	for _, f := range Fields {
		cell := raw[f.Name]
		if !f.Numeric() {
			rec.Categorical[f.Name] = normalizeCategory(cell)
			continue
		}
		v, outcome := RepairValue(cell)
		if outcome == RepairUnrecoverable && report != nil {
			report.Unrecoverable = append(report.Unrecoverable, f.Name)
		}
		rec.Numeric[f.Name] = v
	}
	return rec
}
