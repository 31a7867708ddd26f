package pipeline

import "sort"

// Unseen is the code for categories that were not present at training time.
const Unseen = -1

// Encoder maps categorical values to their index in the sorted list of
// training categories.
type Encoder struct {
	Categories map[string][]string `json:"categories"`
}

// FitEncoder collects the sorted unique categories of every categorical field.
func FitEncoder(records []*Record) *Encoder {
	enc := &Encoder{Categories: make(map[string][]string)}
	for _, name := range CategoricalFields() {
		seen := make(map[string]struct{})
		for _, r := range records {
			seen[r.Categorical[name]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		enc.Categories[name] = cats
	}
	return enc
}

// Encode returns the ordinal code of value for field, or Unseen.
func (e *Encoder) Encode(field, value string) float64 {
	cats := e.Categories[field]
	i := sort.SearchStrings(cats, value)
	if i < len(cats) && cats[i] == value {
		return float64(i)
	}
	return Unseen
}
