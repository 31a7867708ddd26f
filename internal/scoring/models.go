package scoring

import (
	"credit-risk-engine/internal/audit"
	"credit-risk-engine/internal/pipeline"
)

// Risk levels derived from the predicted class.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// RiskLevel maps a credit score class onto its coarse risk label.
func RiskLevel(class int) string {
	switch class {
	case pipeline.ClassGood:
		return RiskLow
	case pipeline.ClassStandard:
		return RiskMedium
	default:
		return RiskHigh
	}
}

type Input struct {
	Record  pipeline.RawRecord
	Explain bool
}

type Output struct {
	PredictionID  string             `json:"prediction_id"`
	CreditScore   string             `json:"credit_score"`
	Probability   map[string]float64 `json:"probability"`
	RiskLevel     string             `json:"risk_level"`
	ModelVersion  string             `json:"model_version"`
	Contributions map[string]float64 `json:"contributions,omitempty"`

	// Report is what the pipeline repaired, capped and imputed.
	Report *pipeline.Report `json:"-"`
}

// AuditRecorder receives one event per served prediction.
type AuditRecorder interface {
	Record(event audit.Event) bool
}
