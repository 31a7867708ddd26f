package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func occupationRecord(occupation string, salary float64) *Record {
	r := newRecord()
	for _, name := range NumericFields() {
		r.Numeric[name] = math.NaN()
	}
	r.Categorical[FieldOccupation] = occupation
	r.Numeric[FieldMonthlyInhandSalary] = salary
	return r
}

func TestFitImputer_GroupAndGlobalMedians(t *testing.T) {
	records := []*Record{
		occupationRecord("Engineer", 4000),
		occupationRecord("Engineer", 5000),
		occupationRecord("Engineer", 9000),
		occupationRecord("Teacher", 2000),
		occupationRecord("Teacher", 3000),
		occupationRecord("Teacher", math.NaN()),
	}

	imp := FitImputer(records, FieldOccupation)

	assert.Equal(t, 5000.0, imp.Groups[FieldMonthlyInhandSalary]["Engineer"])
	assert.Equal(t, 2500.0, imp.Groups[FieldMonthlyInhandSalary]["Teacher"], "even count averages the middle values")
	assert.Equal(t, 4000.0, imp.Global[FieldMonthlyInhandSalary])
	assert.Equal(t, 0.0, imp.Global[FieldMonthlyBalance], "no observed values falls back to 0")
}

func TestImputer_Apply(t *testing.T) {
	imp := FitImputer([]*Record{
		occupationRecord("Engineer", 4000),
		occupationRecord("Engineer", 6000),
		occupationRecord("Teacher", 1000),
	}, FieldOccupation)

	t.Run("known group uses group median", func(t *testing.T) {
		rec := occupationRecord("Engineer", math.NaN())
		filled := imp.Apply(rec)
		assert.Equal(t, 5000.0, rec.Numeric[FieldMonthlyInhandSalary])
		assert.Equal(t, SourceGroup, filled[FieldMonthlyInhandSalary])
	})

	t.Run("unseen group uses global median", func(t *testing.T) {
		rec := occupationRecord("Pilot", math.NaN())
		filled := imp.Apply(rec)
		assert.Equal(t, 4000.0, rec.Numeric[FieldMonthlyInhandSalary])
		assert.Equal(t, SourceGlobal, filled[FieldMonthlyInhandSalary])
	})

	t.Run("present values are untouched", func(t *testing.T) {
		rec := occupationRecord("Engineer", 123)
		filled := imp.Apply(rec)
		assert.Equal(t, 123.0, rec.Numeric[FieldMonthlyInhandSalary])
		_, ok := filled[FieldMonthlyInhandSalary]
		assert.False(t, ok)
	})

	t.Run("no field stays missing", func(t *testing.T) {
		rec := occupationRecord("Teacher", math.NaN())
		imp.Apply(rec)
		assert.Empty(t, rec.MissingFields())
	})
}
