package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/database"
	apperrors "credit-risk-engine/internal/common/errors"
)

// RedisStreamSink appends each prediction to a capped Redis stream so
// downstream consumers can follow scoring in near real time.
type RedisStreamSink struct {
	client *database.RedisClient
	stream string
	maxLen int64
}

func NewRedisStreamSink(client *database.RedisClient, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSink) Name() string { return config.SinkRedis }

func (s *RedisStreamSink) Write(ctx context.Context, event Event) error {
	values, err := streamValues(event)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), err)
	}
	if _, err := s.client.XAdd(ctx, s.stream, s.maxLen, values); err != nil {
		return apperrors.NewAuditWriteFailedError(s.Name(), err)
	}
	return nil
}

func streamValues(event Event) ([]interface{}, error) {
	probability, err := json.Marshal(event.Probability)
	if err != nil {
		return nil, err
	}
	report, err := json.Marshal(event.report())
	if err != nil {
		return nil, err
	}
	return []interface{}{
		"prediction_id", event.PredictionID,
		"model_version", event.ModelVersion,
		"credit_score", event.CreditScore,
		"risk_level", event.RiskLevel,
		"probability", string(probability),
		"report", string(report),
		"explained", strconv.FormatBool(event.Explained),
		"latency_ms", strconv.FormatFloat(event.LatencyMS, 'f', -1, 64),
		"created_at", event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}
