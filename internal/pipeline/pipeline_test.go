package pipeline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() RawRecord {
	return RawRecord{
		FieldAge:                    34.0,
		FieldOccupation:             "Engineer",
		FieldAnnualIncome:           65000.0,
		FieldMonthlyInhandSalary:    4500.0,
		FieldNumBankAccounts:        4.0,
		FieldNumCreditCard:          3.0,
		FieldInterestRate:           15.0,
		FieldNumOfLoan:              2.0,
		FieldDelayFromDueDate:       5.0,
		FieldNumOfDelayedPayment:    1.0,
		FieldChangedCreditLimit:     1200.0,
		FieldNumCreditInquiries:     4.0,
		FieldCreditMix:              "Good",
		FieldOutstandingDebt:        800.0,
		FieldCreditUtilizationRatio: 30.0,
		FieldPaymentOfMinAmount:     "No",
		FieldTotalEMIPerMonth:       150.0,
		FieldAmountInvestedMonthly:  80.0,
		FieldPaymentBehaviour:       "High_spent_Small_value_payments",
		FieldMonthlyBalance:         350.0,
	}
}

func trainingRows() []RawRecord {
	occupations := []string{"Engineer", "Teacher", "Lawyer"}
	rows := make([]RawRecord, 0, 30)
	for i := 0; i < 30; i++ {
		row := sampleRow()
		row[FieldOccupation] = occupations[i%3]
		row[FieldAge] = fmt.Sprintf("%d_", 20+i)
		row[FieldMonthlyInhandSalary] = 3000.0 + float64(i*100)
		row[FieldOutstandingDebt] = 500.0 + float64(i*50)
		if i%7 == 0 {
			row[FieldMonthlyBalance] = "_"
		}
		rows = append(rows, row)
	}
	return rows
}

func fitDefault(t *testing.T) *Params {
	t.Helper()
	params, _, err := Fit(trainingRows(), DefaultConfig())
	require.NoError(t, err)
	return params
}

func TestFeatureNames(t *testing.T) {
	names := FeatureNames()
	require.Len(t, names, 25)
	assert.Equal(t, FieldOccupation, names[0])
	assert.Equal(t, FieldPaymentBehaviour, names[3])
	assert.Equal(t, FieldAge, names[4])
	assert.Equal(t, FeatureIncomeInconsistent, names[24])
}

func TestFit_Report(t *testing.T) {
	params, report, err := Fit(trainingRows(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, Version, params.Version)
	assert.Equal(t, 30, report.Rows)
	assert.Equal(t, 5, report.Unrecoverable[FieldMonthlyBalance])
	assert.Equal(t, 5, report.Imputed[FieldMonthlyBalance])
	assert.NoError(t, params.Validate())
}

func TestFit_Deterministic(t *testing.T) {
	a, _, err := Fit(trainingRows(), DefaultConfig())
	require.NoError(t, err)
	b, _, err := Fit(trainingRows(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFit_Errors(t *testing.T) {
	_, _, err := Fit(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.GroupKey = "Planet"
	_, _, err = Fit(trainingRows(), cfg)
	assert.Error(t, err)
}

func TestTransform(t *testing.T) {
	params := fitDefault(t)

	vec, report, err := params.Transform(sampleRow())
	require.NoError(t, err)
	assert.Equal(t, FeatureNames(), vec.Names)
	for i, v := range vec.Values {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "feature %s", vec.Names[i])
	}
	assert.Empty(t, report.Unrecoverable)

	dti, ok := vec.Get(FeatureDTIRatio)
	require.True(t, ok)
	assert.InDelta(t, 150.0/4500, dti, 1e-12)
}

func TestTransform_NegativeAgeCappedTo18(t *testing.T) {
	params := fitDefault(t)

	row := sampleRow()
	row[FieldAge] = -500.0
	vec, report, err := params.Transform(row)
	require.NoError(t, err)

	age, _ := vec.Get(FieldAge)
	assert.Equal(t, 18.0, age)
	assert.Contains(t, report.Capped, FieldAge)
}

func TestTransform_MalformedAndMissingValues(t *testing.T) {
	params := fitDefault(t)

	row := sampleRow()
	row[FieldAnnualIncome] = "65,000.00_"
	row[FieldMonthlyBalance] = "_"
	delete(row, FieldInterestRate)

	vec, report, err := params.Transform(row)
	require.NoError(t, err)

	income, _ := vec.Get(FieldAnnualIncome)
	assert.Equal(t, 65000.0, income)
	assert.Equal(t, []string{FieldMonthlyBalance}, report.Unrecoverable)
	assert.Equal(t, SourceGroup, report.Imputed[FieldMonthlyBalance])
	assert.Equal(t, SourceGroup, report.Imputed[FieldInterestRate])

	rate, _ := vec.Get(FieldInterestRate)
	assert.Equal(t, 15.0, rate)
}

func TestTransform_ZeroSalaryUsesSentinel(t *testing.T) {
	params := fitDefault(t)

	row := sampleRow()
	row[FieldMonthlyInhandSalary] = 0.0
	params.Capper.Bounds[FieldMonthlyInhandSalary] = Bounds{Lower: -1e8, Upper: 1e8}

	vec, _, err := params.Transform(row)
	require.NoError(t, err)
	dti, _ := vec.Get(FeatureDTIRatio)
	assert.Equal(t, 999.0, dti)
}

func TestTransform_UnseenCategory(t *testing.T) {
	params := fitDefault(t)

	row := sampleRow()
	row[FieldOccupation] = "Astronaut"
	vec, report, err := params.Transform(row)
	require.NoError(t, err)

	occ, _ := vec.Get(FieldOccupation)
	assert.Equal(t, float64(Unseen), occ)
	assert.Empty(t, report.Imputed)
}

func TestTransformBatch(t *testing.T) {
	params := fitDefault(t)
	rows := trainingRows()

	matrix, err := params.TransformBatch(rows)
	require.NoError(t, err)
	require.Len(t, matrix, len(rows))
	for _, row := range matrix {
		assert.Len(t, row, len(FeatureNames()))
	}
}

func TestParams_Validate(t *testing.T) {
	params := fitDefault(t)
	params.Version = "pipeline/0.9.0"
	assert.Error(t, params.Validate())

	var empty *Params
	assert.Error(t, empty.Validate())
}
