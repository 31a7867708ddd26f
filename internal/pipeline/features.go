package pipeline

import (
	"fmt"
	"math"
)

// FeatureConfig holds the constants of the derived ratios. It is persisted
// with the fitted parameters so serving derives exactly what training did.
type FeatureConfig struct {
	DTISentinel            float64 `json:"dti_sentinel"`
	CardLimitProxy         float64 `json:"card_limit_proxy"`
	InconsistencyThreshold float64 `json:"inconsistency_threshold"`
}

// DefaultFeatureConfig mirrors the shipped configuration.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		DTISentinel:            999,
		CardLimitProxy:         5000,
		InconsistencyThreshold: 0.5,
	}
}

// Validate rejects constants that would produce non-finite features.
func (c FeatureConfig) Validate() error {
	for name, v := range map[string]float64{
		"dti_sentinel":            c.DTISentinel,
		"card_limit_proxy":        c.CardLimitProxy,
		"inconsistency_threshold": c.InconsistencyThreshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("features.%s must be finite", name)
		}
	}
	if c.CardLimitProxy <= 0 {
		return fmt.Errorf("features.card_limit_proxy must be positive")
	}
	return nil
}

// Derived holds the engineered ratios of one record.
type Derived struct {
	DTIRatio           float64
	DebtIncomeRatio    float64
	UtilizationProxy   float64
	IncomeStability    float64
	IncomeInconsistent float64
}

// Values returns the ratios in feature vector order.
func (d Derived) Values() []float64 {
	return []float64{
		d.DTIRatio,
		d.DebtIncomeRatio,
		d.UtilizationProxy,
		d.IncomeStability,
		d.IncomeInconsistent,
	}
}

// DebtToIncome is monthly EMI over monthly in-hand salary. A non-positive
// salary yields the sentinel instead of a division by zero.
func DebtToIncome(emi, salary, sentinel float64) float64 {
	if salary <= 0 {
		return sentinel
	}
	return emi / salary
}

// Derive computes the ratios of a cleaned record.
func Derive(rec *Record, cfg FeatureConfig) Derived {
	var (
		annual = rec.Value(FieldAnnualIncome)
		salary = rec.Value(FieldMonthlyInhandSalary)
		debt   = rec.Value(FieldOutstandingDebt)
		cards  = rec.Value(FieldNumCreditCard)
		util   = rec.Value(FieldCreditUtilizationRatio)
		emi    = rec.Value(FieldTotalEMIPerMonth)
	)

	d := Derived{
		DTIRatio:        DebtToIncome(emi, salary, cfg.DTISentinel),
		DebtIncomeRatio: cfg.DTISentinel,
	}
	if annual+1 > 0 {
		d.DebtIncomeRatio = debt / (annual + 1)
	}

	cardExposure := debt / (math.Max(cards, 0)*cfg.CardLimitProxy + 1)
	d.UtilizationProxy = 0.5*clamp01(util/100) + 0.5*clamp01(cardExposure)

	d.IncomeStability = math.Abs(annual-12*salary) / (math.Abs(annual) + 1)
	if d.IncomeStability > cfg.InconsistencyThreshold {
		d.IncomeInconsistent = 1
	}
	return d
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
