// Package pipeline implements the cleaning and feature-engineering steps
// shared by the offline trainer and the scoring service: numeric repair,
// outlier capping, grouped median imputation, categorical encoding and
// financial ratio derivation.
package pipeline

import "strings"

// Version identifies the pipeline code. Artifacts fitted by a different
// version are refused at load time.
const Version = "pipeline/1.0.0"

// FeatureSchemaVersion identifies the feature vector layout.
const FeatureSchemaVersion = "credit-features/v1"

// Kind is the declared semantic type of an applicant field.
type Kind string

const (
	KindInteger     Kind = "integer"
	KindFloat       Kind = "float"
	KindCategorical Kind = "categorical"
)

// Applicant record field names.
const (
	FieldAge                    = "Age"
	FieldOccupation             = "Occupation"
	FieldAnnualIncome           = "Annual_Income"
	FieldMonthlyInhandSalary    = "Monthly_Inhand_Salary"
	FieldNumBankAccounts        = "Num_Bank_Accounts"
	FieldNumCreditCard          = "Num_Credit_Card"
	FieldInterestRate           = "Interest_Rate"
	FieldNumOfLoan              = "Num_of_Loan"
	FieldDelayFromDueDate       = "Delay_from_due_date"
	FieldNumOfDelayedPayment    = "Num_of_Delayed_Payment"
	FieldChangedCreditLimit     = "Changed_Credit_Limit"
	FieldNumCreditInquiries     = "Num_Credit_Inquiries"
	FieldCreditMix              = "Credit_Mix"
	FieldOutstandingDebt        = "Outstanding_Debt"
	FieldCreditUtilizationRatio = "Credit_Utilization_Ratio"
	FieldPaymentOfMinAmount     = "Payment_of_Min_Amount"
	FieldTotalEMIPerMonth       = "Total_EMI_per_month"
	FieldAmountInvestedMonthly  = "Amount_invested_monthly"
	FieldPaymentBehaviour       = "Payment_Behaviour"
	FieldMonthlyBalance         = "Monthly_Balance"
)

// Derived feature names.
const (
	FeatureDTIRatio           = "DTI_Ratio"
	FeatureDebtIncomeRatio    = "Debt_Income_Ratio"
	FeatureUtilizationProxy   = "Utilization_Proxy"
	FeatureIncomeStability    = "Income_Stability"
	FeatureIncomeInconsistent = "Income_Inconsistent"
)

// Field declares one applicant record field: its type, whether the
// pipeline can fill it when missing, and the hard domain a request value
// must respect before it is accepted.
type Field struct {
	Name      string
	Kind      Kind
	Imputable bool
	Min       float64
	Max       float64
	MaxLength int
	Enum      []string
}

// Numeric reports whether the field carries a number.
func (f Field) Numeric() bool {
	return f.Kind == KindInteger || f.Kind == KindFloat
}

func count(name string) Field {
	return Field{Name: name, Kind: KindInteger, Imputable: true, Min: -1000, Max: 10000}
}

func amount(name string, limit float64) Field {
	return Field{Name: name, Kind: KindFloat, Imputable: true, Min: -limit, Max: limit}
}

func category(name string, enum ...string) Field {
	return Field{Name: name, Kind: KindCategorical, MaxLength: 64, Enum: enum}
}

// Fields is the applicant record catalogue in canonical order.
var Fields = []Field{
	{Name: FieldAge, Kind: KindInteger, Imputable: true, Min: -10000, Max: 10000},
	category(FieldOccupation),
	amount(FieldAnnualIncome, 1e9),
	amount(FieldMonthlyInhandSalary, 1e8),
	count(FieldNumBankAccounts),
	count(FieldNumCreditCard),
	count(FieldInterestRate),
	count(FieldNumOfLoan),
	count(FieldDelayFromDueDate),
	count(FieldNumOfDelayedPayment),
	amount(FieldChangedCreditLimit, 1e6),
	count(FieldNumCreditInquiries),
	category(FieldCreditMix, "Good", "Standard", "Bad", "_"),
	amount(FieldOutstandingDebt, 1e9),
	amount(FieldCreditUtilizationRatio, 1000),
	category(FieldPaymentOfMinAmount, "Yes", "No", "NM"),
	amount(FieldTotalEMIPerMonth, 1e8),
	amount(FieldAmountInvestedMonthly, 1e8),
	category(FieldPaymentBehaviour),
	amount(FieldMonthlyBalance, 1e9),
}

// FieldByName looks a field up in the catalogue.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CanonicalName resolves a field name case-insensitively. Configuration
// keys arrive lowercased from the loader.
func CanonicalName(name string) (string, bool) {
	for _, f := range Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Name, true
		}
	}
	return "", false
}

// NumericFields returns numeric field names in catalogue order.
func NumericFields() []string {
	var out []string
	for _, f := range Fields {
		if f.Numeric() {
			out = append(out, f.Name)
		}
	}
	return out
}

// CategoricalFields returns categorical field names in catalogue order.
func CategoricalFields() []string {
	var out []string
	for _, f := range Fields {
		if f.Kind == KindCategorical {
			out = append(out, f.Name)
		}
	}
	return out
}

// DerivedFeatures returns the derived feature names in vector order.
func DerivedFeatures() []string {
	return []string{
		FeatureDTIRatio,
		FeatureDebtIncomeRatio,
		FeatureUtilizationProxy,
		FeatureIncomeStability,
		FeatureIncomeInconsistent,
	}
}

// FeatureNames returns the classifier input layout: encoded categoricals,
// numeric fields, then derived features.
func FeatureNames() []string {
	names := make([]string, 0, len(Fields)+len(DerivedFeatures()))
	names = append(names, CategoricalFields()...)
	names = append(names, NumericFields()...)
	names = append(names, DerivedFeatures()...)
	return names
}

// TargetField is the label column of the training data.
const TargetField = "Credit_Score"

// Credit score classes in model output order.
const (
	ClassGood = iota
	ClassStandard
	ClassPoor
)

// ClassNames lists the class labels indexed by class.
var ClassNames = []string{"Good", "Standard", "Poor"}

// ClassIndex maps a label to its class index.
func ClassIndex(label string) (int, bool) {
	label = strings.TrimSpace(label)
	for i, name := range ClassNames {
		if name == label {
			return i, true
		}
	}
	return 0, false
}
