package pipeline

import (
	"math"
	"sort"
)

// Imputation sources reported per filled field.
const (
	SourceGroup  = "group"
	SourceGlobal = "global"
)

// Imputer fills missing numeric values with the median of the record's
// group, falling back to the global median.
type Imputer struct {
	GroupKey string                        `json:"group_key"`
	Global   map[string]float64            `json:"global"`
	Groups   map[string]map[string]float64 `json:"groups"`
}

// FitImputer learns global and per-group medians for every imputable
// numeric field. A group with no observed value for a field is not stored;
// a field with no observed value at all has a global median of 0.
func FitImputer(records []*Record, groupKey string) *Imputer {
	imp := &Imputer{
		GroupKey: groupKey,
		Global:   make(map[string]float64),
		Groups:   make(map[string]map[string]float64),
	}

	for _, f := range Fields {
		if !f.Numeric() || !f.Imputable {
			continue
		}

		all := make([]float64, 0, len(records))
		byGroup := make(map[string][]float64)
		for _, r := range records {
			v := r.Value(f.Name)
			if math.IsNaN(v) {
				continue
			}
			all = append(all, v)
			g := r.Group(groupKey)
			byGroup[g] = append(byGroup[g], v)
		}

		imp.Global[f.Name] = 0
		if len(all) > 0 {
			imp.Global[f.Name] = median(all)
		}

		if len(byGroup) == 0 {
			continue
		}
		groups := make(map[string]float64, len(byGroup))
		for g, values := range byGroup {
			groups[g] = median(values)
		}
		imp.Groups[f.Name] = groups
	}
	return imp
}

// Apply fills every missing imputable field of rec in place. Present values
// are never touched. The returned map records the source used per field.
func (imp *Imputer) Apply(rec *Record) map[string]string {
	filled := make(map[string]string)
	group := rec.Group(imp.GroupKey)
	for _, f := range Fields {
		if !f.Numeric() || !f.Imputable || !rec.Missing(f.Name) {
			continue
		}
		if m, ok := imp.Groups[f.Name][group]; ok {
			rec.Numeric[f.Name] = m
			filled[f.Name] = SourceGroup
			continue
		}
		rec.Numeric[f.Name] = imp.Global[f.Name]
		filled[f.Name] = SourceGlobal
	}
	return filled
}

// median averages the two middle values for even counts. values is
// reordered.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
