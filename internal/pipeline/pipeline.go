package pipeline

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite is returned when a feature vector would carry NaN or Inf.
var ErrNonFinite = errors.New("non-finite feature value")

// Config parameterises fitting.
type Config struct {
	GroupKey string        `json:"group_key"`
	Capping  CappingConfig `json:"capping"`
	Features FeatureConfig `json:"features"`
}

// DefaultConfig mirrors the shipped configuration.
func DefaultConfig() Config {
	return Config{
		GroupKey: FieldOccupation,
		Capping:  DefaultCappingConfig(),
		Features: DefaultFeatureConfig(),
	}
}

// Params are the fitted, immutable pipeline parameters persisted in the
// model artifact.
type Params struct {
	Version  string        `json:"version"`
	Capper   *Capper       `json:"capper"`
	Imputer  *Imputer      `json:"imputer"`
	Encoder  *Encoder      `json:"encoder"`
	Features FeatureConfig `json:"features"`
}

// FitReport summarises a fitting run.
type FitReport struct {
	Rows          int            `json:"rows"`
	Unrecoverable map[string]int `json:"unrecoverable"`
	Capped        map[string]int `json:"capped"`
	Imputed       map[string]int `json:"imputed"`
}

// FeatureVector is the classifier input: values laid out as FeatureNames.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Get returns the value of a named feature.
func (v *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Fit learns capping bounds, imputation medians and categories from rows.
// The result depends only on rows and cfg.
func Fit(rows []RawRecord, cfg Config) (*Params, *FitReport, error) {
	if len(rows) == 0 {
		return nil, nil, errors.New("pipeline: no rows to fit")
	}
	if _, ok := FieldByName(cfg.GroupKey); !ok {
		return nil, nil, fmt.Errorf("pipeline: unknown group key %q", cfg.GroupKey)
	}
	if err := cfg.Features.Validate(); err != nil {
		return nil, nil, err
	}

	report := &FitReport{
		Rows:          len(rows),
		Unrecoverable: repairReport(rows),
		Capped:        map[string]int{},
		Imputed:       map[string]int{},
	}

	records := make([]*Record, len(rows))
	for i, raw := range rows {
		records[i] = repairRecord(raw, nil)
	}

	capper, err := FitCapper(records, cfg.Capping)
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range records {
		for _, name := range capper.Apply(rec) {
			report.Capped[name]++
		}
	}

	imputer := FitImputer(records, cfg.GroupKey)
	for _, rec := range records {
		for name := range imputer.Apply(rec) {
			report.Imputed[name]++
		}
	}

	return &Params{
		Version:  Version,
		Capper:   capper,
		Imputer:  imputer,
		Encoder:  FitEncoder(records),
		Features: cfg.Features,
	}, report, nil
}

// repairReport counts unrecoverable cells per numeric column.
func repairReport(rows []RawRecord) map[string]int {
	out := make(map[string]int)
	for _, name := range NumericFields() {
		cells := make([]interface{}, len(rows))
		for i, raw := range rows {
			cells[i] = raw[name]
		}
		if _, n := RepairColumn(cells); n > 0 {
			out[name] = n
		}
	}
	return out
}

// Step is one in-place transformation of a record.
type Step struct {
	Name  string
	Apply func(*Record, *Report) error
}

// Steps returns the ordered cleaning steps applied after repair.
func (p *Params) Steps() []Step {
	return []Step{
		{Name: "cap", Apply: func(r *Record, rep *Report) error {
			rep.Capped = append(rep.Capped, p.Capper.Apply(r)...)
			return nil
		}},
		{Name: "impute", Apply: func(r *Record, rep *Report) error {
			for k, v := range p.Imputer.Apply(r) {
				rep.Imputed[k] = v
			}
			if missing := r.MissingFields(); len(missing) > 0 {
				return fmt.Errorf("pipeline: fields still missing after imputation: %v", missing)
			}
			return nil
		}},
	}
}

// Clean repairs raw and runs the cleaning steps, returning a record with
// no missing numeric values.
func (p *Params) Clean(raw RawRecord) (*Record, *Report, error) {
	report := newReport()
	rec := repairRecord(raw, report)
	for _, step := range p.Steps() {
		if err := step.Apply(rec, report); err != nil {
			return nil, report, fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return rec, report, nil
}

// Vectorize encodes categoricals, copies numerics and appends the derived
// ratios in FeatureNames order.
func (p *Params) Vectorize(rec *Record) (*FeatureVector, error) {
	names := FeatureNames()
	values := make([]float64, 0, len(names))
	for _, name := range CategoricalFields() {
		values = append(values, p.Encoder.Encode(name, rec.Categorical[name]))
	}
	for _, name := range NumericFields() {
		values = append(values, rec.Value(name))
	}
	values = append(values, Derive(rec, p.Features).Values()...)

	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrNonFinite, names[i], v)
		}
	}
	return &FeatureVector{Names: names, Values: values}, nil
}

// Transform runs one raw record through the whole pipeline.
func (p *Params) Transform(raw RawRecord) (*FeatureVector, *Report, error) {
	rec, report, err := p.Clean(raw)
	if err != nil {
		return nil, report, err
	}
	vec, err := p.Vectorize(rec)
	if err != nil {
		return nil, report, err
	}
	return vec, report, nil
}

// TransformBatch transforms rows into a feature matrix in row order.
func (p *Params) TransformBatch(rows []RawRecord) ([][]float64, error) {
	matrix := make([][]float64, len(rows))
	for i, raw := range rows {
		vec, _, err := p.Transform(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		matrix[i] = vec.Values
	}
	return matrix, nil
}

// Validate checks that params are complete and were produced by this
// pipeline version.
func (p *Params) Validate() error {
	if p == nil || p.Capper == nil || p.Imputer == nil || p.Encoder == nil {
		return errors.New("pipeline: incomplete parameters")
	}
	if p.Version != Version {
		return fmt.Errorf("pipeline: parameters fitted by %q, running %q", p.Version, Version)
	}
	return p.Features.Validate()
}
