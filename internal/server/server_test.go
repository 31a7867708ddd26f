package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"credit-risk-engine/internal/common/config"
	apperrors "credit-risk-engine/internal/common/errors"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/validation"
	"credit-risk-engine/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeScorer struct {
	out   *scoring.Output
	err   error
	calls []*scoring.Input
}

func (f *fakeScorer) Score(_ context.Context, input *scoring.Input) (*scoring.Output, error) {
	f.calls = append(f.calls, input)
	return f.out, f.err
}

func (f *fakeScorer) ModelVersion() string { return "fake-model" }

func createTestScorer() *fakeScorer {
	return &fakeScorer{out: &scoring.Output{
		PredictionID: "0b4b0e7c-8a3c-4a53-9a4c-2d3c1f0e9d11",
		CreditScore:  "Poor",
		Probability:  map[string]float64{"Good": 0.05, "Standard": 0.15, "Poor": 0.8},
		RiskLevel:    scoring.RiskHigh,
		ModelVersion: "fake-model",
	}}
}

const validBody = `{
	"Age": 28, "Occupation": "Engineer", "Annual_Income": "15,000.00_",
	"Monthly_Inhand_Salary": 1250, "Num_Bank_Accounts": 4, "Num_Credit_Card": 3,
	"Interest_Rate": 15, "Num_of_Loan": 2, "Delay_from_due_date": 5,
	"Num_of_Delayed_Payment": 1, "Changed_Credit_Limit": 1200, "Num_Credit_Inquiries": 4,
	"Credit_Mix": "Good", "Outstanding_Debt": 4000, "Credit_Utilization_Ratio": 90,
	"Payment_of_Min_Amount": "No", "Total_EMI_per_month": 150, "Amount_invested_monthly": 80,
	"Payment_Behaviour": "High_spent_Small_value_payments", "Monthly_Balance": null
}`

func setupTestServer(t *testing.T, scorer Scorer) *Server {
	t.Helper()
	v, err := validation.NewApplicantValidator()
	require.NoError(t, err)

	s, err := New(config.ServerConfig{Host: "127.0.0.1", Port: 8080, BodyLimit: "64K"}, v, logger.NewTestLogger(t))
	require.NoError(t, err)
	if scorer != nil {
		s.SetScorer(scorer)
	}
	return s
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// ==========================
// Constructor Tests
// ==========================

func TestNew(t *testing.T) {
	v, err := validation.NewApplicantValidator()
	require.NoError(t, err)

	_, err = New(config.ServerConfig{}, nil, logger.NewNoOpLogger())
	assert.Error(t, err)

	_, err = New(config.ServerConfig{}, v, nil)
	assert.Error(t, err)

	s, err := New(config.ServerConfig{ReadTimeout: 5000}, v, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, "5s", s.echo.Server.ReadTimeout.String())
}

// ==========================
// Health and Readiness Tests
// ==========================

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model_loaded":false}`, rec.Body.String())

	s.SetScorer(createTestScorer())
	rec = doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model_loaded":true}`, rec.Body.String())
}

func TestHandleReady(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetScorer(createTestScorer())
	rec = doRequest(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","model_version":"fake-model"}`, rec.Body.String())
}

func TestHandleMetrics(t *testing.T) {
	s := setupTestServer(t, createTestScorer())
	doRequest(s, http.MethodGet, "/health", "")

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "credit_http_request_duration_seconds")
}

// ==========================
// Predict Tests
// ==========================

func TestHandlePredict_Success(t *testing.T) {
	scorer := createTestScorer()
	s := setupTestServer(t, scorer)

	rec := doRequest(s, http.MethodPost, "/predict?explain=true", validBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out scoring.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Poor", out.CreditScore)
	assert.Equal(t, "High", out.RiskLevel)
	assert.InDelta(t, 1.0, out.Probability["Good"]+out.Probability["Standard"]+out.Probability["Poor"], 1e-9)

	require.Len(t, scorer.calls, 1)
	assert.True(t, scorer.calls[0].Explain)
	assert.Equal(t, "15,000.00_", scorer.calls[0].Record["Annual_Income"])
}

func TestHandlePredict_Errors(t *testing.T) {
	tests := []struct {
		name       string
		scorer     Scorer
		target     string
		body       string
		wantStatus int
		wantCode   apperrors.ErrorCode
		wantField  string
	}{
		{
			name:       "model not loaded",
			target:     "/predict",
			body:       validBody,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.ErrCodeModelNotLoaded,
		},
		{
			name:       "not json",
			scorer:     createTestScorer(),
			target:     "/predict",
			body:       "Age=28",
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeInvalidRequestBody,
		},
		{
			name:       "json array",
			scorer:     createTestScorer(),
			target:     "/predict",
			body:       `[1, 2]`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeInvalidRequestBody,
		},
		{
			name:       "json null",
			scorer:     createTestScorer(),
			target:     "/predict",
			body:       `null`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeInvalidRequestBody,
		},
		{
			name:       "missing categorical",
			scorer:     createTestScorer(),
			target:     "/predict",
			body:       strings.Replace(validBody, `"Occupation": "Engineer",`, "", 1),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.ErrCodeValidationFailed,
			wantField:  "Occupation",
		},
		{
			name:       "wrong type",
			scorer:     createTestScorer(),
			target:     "/predict",
			body:       strings.Replace(validBody, `"Num_of_Loan": 2`, `"Num_of_Loan": true`, 1),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.ErrCodeValidationFailed,
			wantField:  "Num_of_Loan",
		},
		{
			name:       "bad explain flag",
			scorer:     createTestScorer(),
			target:     "/predict?explain=maybe",
			body:       validBody,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.ErrCodeValidationFailed,
			wantField:  "explain",
		},
		{
			name:       "prediction failure is masked",
			scorer:     &fakeScorer{err: apperrors.NewPredictionFailedError(errors.New("feature 3 is not finite"))},
			target:     "/predict",
			body:       validBody,
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.ErrCodeInternal,
		},
		{
			name:       "unexpected error",
			scorer:     &fakeScorer{err: errors.New("boom")},
			target:     "/predict",
			body:       validBody,
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, tt.scorer)
			rec := doRequest(s, http.MethodPost, tt.target, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
			assert.NotContains(t, rec.Body.String(), "boom")
			assert.NotContains(t, rec.Body.String(), "not finite")

			if tt.wantField != "" {
				require.NotEmpty(t, resp.Errors)
				found := false
				for _, fe := range resp.Errors {
					if fe.Field == tt.wantField {
						found = true
					}
				}
				assert.True(t, found, "errors: %+v", resp.Errors)
			}
		})
	}
}

func TestHandlePredict_BodyLimit(t *testing.T) {
	s := setupTestServer(t, createTestScorer())
	body := `{"pad":"` + strings.Repeat("x", 70*1024) + `"}`

	rec := doRequest(s, http.MethodPost, "/predict", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
