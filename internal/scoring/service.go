// Package scoring turns one applicant record into a credit score using a
// loaded model artifact.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"credit-risk-engine/internal/audit"
	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/metrics"
	"credit-risk-engine/internal/common/observability"
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/pipeline"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"
)

// Service scores applicants against an immutable artifact. It is safe for
// concurrent use.
type Service struct {
	artifact *artifact.Artifact
	config   *Config
	logger   logger.Logger
	obs      *observability.Observability
	recorder AuditRecorder
}

// NewService verifies the artifact and wraps it. obs and recorder may be
// nil.
func NewService(art *artifact.Artifact, config *Config, log logger.Logger, obs *observability.Observability, recorder AuditRecorder) (*Service, error) {
	if art == nil {
		return nil, apperrors.NewModelNotLoadedError()
	}
	if err := art.Verify(); err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultConfig()
	}
	if obs == nil {
		obs = observability.NewNoop()
	}

	metrics.ModelInfo.WithLabelValues(art.ModelVersion, art.PipelineVersion, art.Checksum).Set(1)

	return &Service{
		artifact: art,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"component": "scoring", "modelVersion": art.ModelVersion}),
		obs:      obs,
		recorder: recorder,
	}, nil
}

func (s *Service) ModelVersion() string { return s.artifact.ModelVersion }

func (s *Service) Artifact() *artifact.Artifact { return s.artifact }

// Score runs the pipeline and the classifier. Any internal failure is
// returned as an error; no class is ever defaulted.
func (s *Service) Score(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	ctx, span := s.obs.StartSpan(ctx, "scoring.score", attribute.Bool("explain", input.Explain))
	defer span.End()

	out, err := s.score(ctx, input)
	if err != nil {
		se := apperrors.Normalize(err)
		metrics.PredictionFailures.WithLabelValues(string(se.Code)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, se.Message)
		s.logger.Error("Scoring failed", map[string]interface{}{
			"code":  se.Code,
			"error": err.Error(),
		})
		return nil, se
	}

	elapsed := time.Since(start)
	metrics.PredictionsTotal.WithLabelValues(out.CreditScore, out.RiskLevel).Inc()
	metrics.PredictionDuration.WithLabelValues(strconv.FormatBool(input.Explain)).Observe(elapsed.Seconds())
	s.obs.RecordPrediction(ctx, out.CreditScore, elapsed)
	span.SetAttributes(
		attribute.String("prediction_id", out.PredictionID),
		attribute.String("credit_score", out.CreditScore),
	)

	if s.recorder != nil {
		s.recorder.Record(audit.Event{
			PredictionID:  out.PredictionID,
			ModelVersion:  out.ModelVersion,
			CreditScore:   out.CreditScore,
			RiskLevel:     out.RiskLevel,
			Probability:   out.Probability,
			Explained:     input.Explain,
			Capped:        out.Report.Capped,
			Imputed:       out.Report.Imputed,
			Unrecoverable: out.Report.Unrecoverable,
			LatencyMS:     float64(elapsed.Microseconds()) / 1000,
			CreatedAt:     start.UTC(),
		})
	}

	s.logger.Debug("Prediction served", map[string]interface{}{
		"predictionId": out.PredictionID,
		"creditScore":  out.CreditScore,
		"duration":     elapsed.String(),
	})
	return out, nil
}

func (s *Service) score(ctx context.Context, input *Input) (*Output, error) {
	_, span := s.obs.StartSpan(ctx, "pipeline.transform")
	vec, report, err := s.artifact.Pipeline.Transform(input.Record)
	span.End()
	if report != nil {
		recordReport(report)
	}
	if err != nil {
		return nil, apperrors.NewPredictionFailedError(err)
	}

	_, span = s.obs.StartSpan(ctx, "model.predict")
	probs, err := s.artifact.Model.Predict(vec.Values)
	span.End()
	if err != nil {
		return nil, apperrors.NewPredictionFailedError(err)
	}
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, apperrors.NewPredictionFailedError(fmt.Errorf("invalid probability %v", p))
		}
	}

	class := floats.MaxIdx(probs)
	out := &Output{
		PredictionID: uuid.New().String(),
		CreditScore:  s.artifact.ClassNames[class],
		Probability:  make(map[string]float64, len(probs)),
		RiskLevel:    RiskLevel(class),
		ModelVersion: s.artifact.ModelVersion,
		Report:       report,
	}
	for k, p := range probs {
		out.Probability[s.artifact.ClassNames[k]] = p
	}

	if input.Explain {
		_, span = s.obs.StartSpan(ctx, "model.explain")
		exp, err := s.artifact.Model.Explain(vec.Values, class)
		span.End()
		if err != nil {
			return nil, apperrors.NewPredictionFailedError(err)
		}
		out.Contributions = s.contributions(vec.Names, exp.Contributions)
	}
	return out, nil
}

// contributions names the attribution values, optionally keeping only the
// largest in magnitude.
func (s *Service) contributions(names []string, values []float64) map[string]float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	if n := s.config.TopContributions; n > 0 && n < len(idx) {
		sort.SliceStable(idx, func(a, b int) bool {
			return math.Abs(values[idx[a]]) > math.Abs(values[idx[b]])
		})
		idx = idx[:n]
	}

	out := make(map[string]float64, len(idx))
	for _, i := range idx {
		out[names[i]] = values[i]
	}
	return out
}

func recordReport(report *pipeline.Report) {
	for _, field := range report.Unrecoverable {
		metrics.RepairFailures.WithLabelValues(field).Inc()
	}
	for _, field := range report.Capped {
		metrics.CappedValues.WithLabelValues(field).Inc()
	}
	for field, source := range report.Imputed {
		metrics.Imputations.WithLabelValues(field, source).Inc()
	}
}
