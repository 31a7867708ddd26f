package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// RawRecord is an applicant record as received: values are JSON numbers,
// strings (possibly malformed) or nil.
type RawRecord map[string]interface{}

// Record is an applicant record after numeric repair. Missing numeric
// values are NaN; the imputer removes them before a record leaves the
// pipeline.
type Record struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

func newRecord() *Record {
	return &Record{
		Numeric:     make(map[string]float64, len(Fields)),
		Categorical: make(map[string]string, 4),
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := newRecord()
	for k, v := range r.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range r.Categorical {
		out.Categorical[k] = v
	}
	return out
}

// Missing reports whether the numeric field has no value.
func (r *Record) Missing(field string) bool {
	v, ok := r.Numeric[field]
	return !ok || math.IsNaN(v)
}

// Value returns the numeric field or NaN when absent.
func (r *Record) Value(field string) float64 {
	v, ok := r.Numeric[field]
	if !ok {
		return math.NaN()
	}
	return v
}

// Group returns the imputation group key of the record.
func (r *Record) Group(key string) string {
	return r.Categorical[key]
}

// MissingFields lists numeric fields still without a value.
func (r *Record) MissingFields() []string {
	var out []string
	for _, name := range NumericFields() {
		if r.Missing(name) {
			out = append(out, name)
		}
	}
	return out
}

func normalizeCategory(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Report describes what the pipeline did to one record.
type Report struct {
	Unrecoverable []string          `json:"unrecoverable,omitempty"`
	Capped        []string          `json:"capped,omitempty"`
	Imputed       map[string]string `json:"imputed,omitempty"`
}

func newReport() *Report {
	return &Report{Imputed: map[string]string{}}
}
