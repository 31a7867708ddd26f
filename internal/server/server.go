// Package server exposes the scoring service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/validation"
	"credit-risk-engine/internal/scoring"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scorer is the part of the scoring service the HTTP layer needs.
type Scorer interface {
	Score(ctx context.Context, input *scoring.Input) (*scoring.Output, error)
	ModelVersion() string
}

type scorerBox struct {
	Scorer
}

type Server struct {
	echo      *echo.Echo
	scorer    atomic.Pointer[scorerBox]
	validator *validation.Validator
	logger    logger.Logger
	config    config.ServerConfig
}

// New builds the router. The server reports not ready and answers
// /predict with 503 until SetScorer is called.
func New(cfg config.ServerConfig, validator *validation.Validator, log logger.Logger) (*Server, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = config.GetDuration(cfg.ReadTimeout)
	e.Server.WriteTimeout = config.GetDuration(cfg.WriteTimeout)

	s := &Server{
		echo:      e,
		validator: validator,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
		config:    cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/predict", s.handlePredict)
}

// SetScorer makes the server ready.
func (s *Server) SetScorer(scorer Scorer) {
	s.scorer.Store(&scorerBox{Scorer: scorer})
}

func (s *Server) currentScorer() Scorer {
	if box := s.scorer.Load(); box != nil {
		return box.Scorer
	}
	return nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("Starting HTTP server", map[string]interface{}{"addr": addr})
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)
	return s.echo.Shutdown(ctx)
}
