package audit

import (
	"context"
	"time"
)

// Event is one served prediction as written to the audit sinks. It never
// carries the raw applicant record.
type Event struct {
	PredictionID  string             `json:"prediction_id"`
	ModelVersion  string             `json:"model_version"`
	CreditScore   string             `json:"credit_score"`
	RiskLevel     string             `json:"risk_level"`
	Probability   map[string]float64 `json:"probability"`
	Explained     bool               `json:"explained"`
	Capped        []string           `json:"capped,omitempty"`
	Imputed       map[string]string  `json:"imputed,omitempty"`
	Unrecoverable []string           `json:"unrecoverable,omitempty"`
	LatencyMS     float64            `json:"latency_ms"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Sink persists audit events.
type Sink interface {
	Name() string
	Write(ctx context.Context, event Event) error
}

// pipelineReport is the JSON document stored alongside each event.
type pipelineReport struct {
	Capped        []string          `json:"capped,omitempty"`
	Imputed       map[string]string `json:"imputed,omitempty"`
	Unrecoverable []string          `json:"unrecoverable,omitempty"`
}

func (e Event) report() pipelineReport {
	return pipelineReport{Capped: e.Capped, Imputed: e.Imputed, Unrecoverable: e.Unrecoverable}
}
