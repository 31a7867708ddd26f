package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"credit-risk-engine/internal/audit"
	"credit-risk-engine/internal/common/config"
	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/observability"
	"credit-risk-engine/internal/common/validation"
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/scoring"
	"credit-risk-engine/internal/server"
	"credit-risk-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
// Artifacts built for another pipeline or feature layout are not retried.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if permanent(err) {
			break
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed: %w", operationName, err)
}

func permanent(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeArtifactVersionMismatch) ||
		apperrors.HasCode(err, apperrors.ErrCodeFeatureSchemaMismatch)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting scoring server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	validator, err := validation.NewApplicantValidator()
	if err != nil {
		zapLog.Fatal("applicant schema failed to compile", zap.Error(err))
	}

	srv, err := server.New(cfg.Server, validator, log)
	if err != nil {
		zapLog.Fatal("http server init failed", zap.Error(err))
	}

	// Health checks answer while the artifact loads; /ready stays 503 until then.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	ctx := context.Background()

	// --- Audit sinks with retry ---
	var (
		recorder *audit.Recorder
		cleanup  = func() {}
	)
	err = retryWithBackoff(func() error {
		var err error
		recorder, cleanup, err = audit.Setup(ctx, cfg, log)
		return err
	}, 5, time.Second, zapLog, "Audit sink connection")
	if err != nil {
		zapLog.Fatal("audit sinks unavailable", zap.Error(err))
	}

	// --- Model artifact ---
	artifactPath := cfg.Model.ArtifactPath
	if cfg.Model.UseRegistry {
		artifactPath, err = registry.ResolveActivePath(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("registry has no servable model", zap.String("registry", cfg.Registry.Path), zap.Error(err))
		}
	}

	var art *artifact.Artifact
	err = retryWithBackoff(func() error {
		var err error
		art, err = artifact.Load(artifactPath)
		return err
	}, cfg.Model.LoadRetries, 500*time.Millisecond, zapLog, "Model artifact load")
	if err != nil {
		zapLog.Fatal("model artifact load failed", zap.String("path", artifactPath), zap.Error(err))
	}

	var auditRecorder scoring.AuditRecorder
	if recorder != nil {
		auditRecorder = recorder
	}
	svc, err := scoring.NewService(art, scoring.DefaultConfig(), log, obs, auditRecorder)
	if err != nil {
		zapLog.Fatal("scoring service init failed", zap.Error(err))
	}
	srv.SetScorer(svc)

	zapLog.Info("Model loaded, serving predictions",
		zap.String("path", artifactPath),
		zap.String("modelVersion", art.ModelVersion),
		zap.String("checksum", art.Checksum),
	)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, stopping server...")
	case err := <-serveErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if recorder != nil {
		if err := recorder.Close(shutdownCtx); err != nil {
			zapLog.Warn("Audit buffer not fully drained", zap.Error(err))
		}
	}
	cleanup()

	zapLog.Info("Scoring server stopped gracefully")
}
