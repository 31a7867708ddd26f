package training

import (
	"fmt"
	"math"
	"math/rand"

	"credit-risk-engine/internal/pipeline"
)

var (
	syntheticOccupations = []string{
		"Accountant", "Architect", "Developer", "Doctor", "Engineer",
		"Journalist", "Lawyer", "Manager", "Mechanic", "Teacher",
	}
	syntheticBehaviours = []string{
		"High_spent_Large_value_payments",
		"High_spent_Medium_value_payments",
		"High_spent_Small_value_payments",
		"Low_spent_Large_value_payments",
		"Low_spent_Medium_value_payments",
		"Low_spent_Small_value_payments",
	}
	syntheticMixes      = []string{"Good", "Standard", "Bad", "_"}
	syntheticMinPayment = []string{"Yes", "No", "NM"}
)

// Synthetic generates a deterministic labelled dataset for smoke runs and
// tests. The label depends only on Credit_Utilization_Ratio: at least 70
// is Poor, at most 25 is Good, anything between is Standard. A share of
// cells carries the noise seen in raw bureau exports (trailing
// underscores, thousands separators, blanks, impossible ages).
func Synthetic(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{
		Rows:   make([]pipeline.RawRecord, 0, n),
		Labels: make([]int, 0, n),
	}

	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	pick := func(options []string) string { return options[rng.Intn(len(options))] }

	for i := 0; i < n; i++ {
		annual := math.Round(uniform(10000, 150000))
		salary := math.Round(annual / 12 * uniform(0.85, 1.05))
		util := math.Round(uniform(10, 100)*100) / 100
		debt := math.Round(uniform(0, 5000))

		row := pipeline.RawRecord{
			pipeline.FieldAge:                    float64(18 + rng.Intn(53)),
			pipeline.FieldOccupation:             pick(syntheticOccupations),
			pipeline.FieldAnnualIncome:           annual,
			pipeline.FieldMonthlyInhandSalary:    salary,
			pipeline.FieldNumBankAccounts:        float64(rng.Intn(11)),
			pipeline.FieldNumCreditCard:          float64(1 + rng.Intn(8)),
			pipeline.FieldInterestRate:           float64(1 + rng.Intn(30)),
			pipeline.FieldNumOfLoan:              float64(rng.Intn(8)),
			pipeline.FieldDelayFromDueDate:       float64(rng.Intn(60)),
			pipeline.FieldNumOfDelayedPayment:    float64(rng.Intn(25)),
			pipeline.FieldChangedCreditLimit:     math.Round(uniform(-5, 3000)),
			pipeline.FieldNumCreditInquiries:     float64(rng.Intn(15)),
			pipeline.FieldCreditMix:              pick(syntheticMixes),
			pipeline.FieldOutstandingDebt:        debt,
			pipeline.FieldCreditUtilizationRatio: util,
			pipeline.FieldPaymentOfMinAmount:     pick(syntheticMinPayment),
			pipeline.FieldTotalEMIPerMonth:       math.Round(uniform(0, 0.2) * salary),
			pipeline.FieldAmountInvestedMonthly:  math.Round(uniform(0, 0.1) * salary),
			pipeline.FieldPaymentBehaviour:       pick(syntheticBehaviours),
			pipeline.FieldMonthlyBalance:         math.Round(uniform(0, 0.4) * salary),
		}

		switch rng.Intn(20) {
		case 0:
			row[pipeline.FieldAnnualIncome] = fmt.Sprintf("%s_", thousands(annual))
		case 1:
			row[pipeline.FieldAge] = fmt.Sprintf("%v_", row[pipeline.FieldAge])
		case 2:
			row[pipeline.FieldMonthlyBalance] = "_"
		case 3:
			delete(row, pipeline.FieldMonthlyInhandSalary)
		case 4:
			row[pipeline.FieldAge] = -500.0
		case 5:
			row[pipeline.FieldNumBankAccounts] = 1400.0
		}

		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, syntheticLabel(util))
	}
	return ds
}

func syntheticLabel(util float64) int {
	switch {
	case util >= 70:
		return pipeline.ClassPoor
	case util <= 25:
		return pipeline.ClassGood
	default:
		return pipeline.ClassStandard
	}
}

// thousands formats a whole amount with comma separators.
func thousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out) + ".00"
}
