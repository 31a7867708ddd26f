package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/pipeline"
	"credit-risk-engine/internal/scoring"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every non-2xx answer from /predict.
type ErrorResponse struct {
	Code      apperrors.ErrorCode    `json:"code"`
	Message   string                 `json:"message"`
	Errors    []apperrors.FieldError `json:"errors,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type ReadyResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", ModelLoaded: s.currentScorer() != nil})
}

func (s *Server) handleReady(c echo.Context) error {
	scorer := s.currentScorer()
	if scorer == nil {
		return c.JSON(http.StatusServiceUnavailable, ReadyResponse{Status: "loading"})
	}
	return c.JSON(http.StatusOK, ReadyResponse{Status: "ready", ModelVersion: scorer.ModelVersion()})
}

func (s *Server) handlePredict(c echo.Context) error {
	scorer := s.currentScorer()
	if scorer == nil {
		return s.writeError(c, apperrors.NewModelNotLoadedError())
	}

	explain := false
	if raw := c.QueryParam("explain"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return s.writeError(c, apperrors.NewValidationError([]apperrors.FieldError{{
				Field:   "explain",
				Message: "must be a boolean",
				Code:    "invalid_type",
			}}))
		}
		explain = v
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	var record map[string]interface{}
	if err := json.Unmarshal(body, &record); err != nil || record == nil {
		return s.writeError(c, apperrors.NewInvalidRequestBodyError(err))
	}

	result, err := s.validator.ValidateInput(record)
	if err != nil {
		return s.writeError(c, err)
	}
	if !result.Valid {
		return s.writeError(c, apperrors.NewValidationError(result.Errors))
	}

	out, err := scorer.Score(c.Request().Context(), &scoring.Input{
		Record:  pipeline.RawRecord(record),
		Explain: explain,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// writeError maps err onto its status. Server-side failures get a generic
// message and are logged with the cause.
func (s *Server) writeError(c echo.Context, err error) error {
	se := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(se.Code)
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	resp := ErrorResponse{
		Code:      se.Code,
		Message:   se.Message,
		Errors:    se.Fields,
		RequestID: requestID,
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("Prediction request failed", map[string]interface{}{
			"code":       se.Code,
			"details":    se.Details,
			"request_id": requestID,
		})
		resp.Code = apperrors.ErrCodeInternal
		resp.Message = "Internal server error"
	}
	return c.JSON(status, resp)
}
