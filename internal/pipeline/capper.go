package pipeline

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Bounds is a closed clipping interval.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Clip returns x limited to [Lower, Upper]. NaN passes through.
func (b Bounds) Clip(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	return math.Min(math.Max(x, b.Lower), b.Upper)
}

// CappingConfig selects how bounds are obtained: fixed domain constants
// for the fields named in Fixed, training percentiles for the rest.
type CappingConfig struct {
	Fixed           map[string]Bounds `json:"fixed"`
	LowerPercentile float64           `json:"lower_percentile"`
	UpperPercentile float64           `json:"upper_percentile"`
}

// DefaultCappingConfig mirrors the shipped configuration.
func DefaultCappingConfig() CappingConfig {
	return CappingConfig{
		Fixed: map[string]Bounds{
			FieldAge:             {Lower: 18, Upper: 100},
			FieldNumBankAccounts: {Lower: 0, Upper: 20},
		},
		LowerPercentile: 0.01,
		UpperPercentile: 0.99,
	}
}

// Validate checks percentile ordering and fixed bounds.
func (c CappingConfig) Validate() error {
	if c.LowerPercentile < 0 || c.UpperPercentile > 1 || c.LowerPercentile >= c.UpperPercentile {
		return fmt.Errorf("capping percentiles must satisfy 0 <= lower < upper <= 1, got %v/%v",
			c.LowerPercentile, c.UpperPercentile)
	}
	for name, b := range c.Fixed {
		f, ok := FieldByName(name)
		if !ok || !f.Numeric() {
			return fmt.Errorf("capping: %q is not a numeric field", name)
		}
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
			return fmt.Errorf("capping: invalid bounds for %s", name)
		}
	}
	return nil
}

// Capper holds per-field bounds. Fields without bounds are left alone.
type Capper struct {
	Bounds map[string]Bounds `json:"bounds"`
}

// FitCapper learns percentile bounds from the non-missing training values
// of every numeric field not covered by a fixed bound. A field with no
// observed values gets no bounds.
func FitCapper(records []*Record, cfg CappingConfig) (*Capper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Capper{Bounds: make(map[string]Bounds)}
	for _, name := range NumericFields() {
		if b, ok := cfg.Fixed[name]; ok {
			c.Bounds[name] = b
			continue
		}
		values := observed(records, name)
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		c.Bounds[name] = Bounds{
			Lower: Percentile(values, cfg.LowerPercentile),
			Upper: Percentile(values, cfg.UpperPercentile),
		}
	}
	return c, nil
}

// Apply clips every bounded field of rec in place and returns the names
// of fields whose value changed.
func (c *Capper) Apply(rec *Record) []string {
	var changed []string
	for _, name := range NumericFields() {
		b, ok := c.Bounds[name]
		if !ok {
			continue
		}
		v, present := rec.Numeric[name]
		if !present {
			continue
		}
		clipped := b.Clip(v)
		if clipped != v && !math.IsNaN(v) {
			rec.Numeric[name] = clipped
			changed = append(changed, name)
		}
	}
	return changed
}

// Percentile returns the p-quantile of sorted with linear interpolation
// between order statistics at rank 1+(n-1)p, the common spreadsheet and
// dataframe definition. gonum's LinInterp interpolates at rank n*p, so p is
// rescaled onto that rank before the call.
func Percentile(sorted []float64, p float64) float64 {
	n := float64(len(sorted))
	return stat.Quantile((1+(n-1)*p)/n, stat.LinInterp, sorted, nil)
}

func observed(records []*Record, field string) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v := r.Value(field); !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return values
}
