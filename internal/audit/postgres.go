package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/database"
	apperrors "credit-risk-engine/internal/common/errors"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresSink inserts one row per prediction.
type PostgresSink struct {
	client *database.PostgresClient
	table  string
}

func NewPostgresSink(client *database.PostgresClient, table string) (*PostgresSink, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	return &PostgresSink{client: client, table: table}, nil
}

func (s *PostgresSink) Name() string { return config.SinkPostgres }

// EnsureTable creates the audit table when it does not exist yet.
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		prediction_id UUID PRIMARY KEY,
		model_version TEXT NOT NULL,
		credit_score TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		probability JSONB NOT NULL,
		report JSONB,
		explained BOOLEAN NOT NULL DEFAULT FALSE,
		latency_ms DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL
	)`, s.table)
	if _, err := s.client.Exec(ctx, query); err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), fmt.Errorf("create table: %w", err))
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	probability, err := json.Marshal(event.Probability)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), err)
	}
	report, err := json.Marshal(event.report())
	if err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(prediction_id, model_version, credit_score, risk_level, probability, report, explained, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (prediction_id) DO NOTHING`, s.table)

	_, err = s.client.Exec(ctx, query,
		event.PredictionID,
		event.ModelVersion,
		event.CreditScore,
		event.RiskLevel,
		string(probability),
		string(report),
		event.Explained,
		event.LatencyMS,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), err)
	}
	return nil
}
