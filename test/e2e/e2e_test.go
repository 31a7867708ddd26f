package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/audit"
	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/validation"
	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/internal/scoring"
	"credit-risk-engine/internal/server"
	"credit-risk-engine/internal/training"
	"credit-risk-engine/pkg/registry"
)

var (
	workDir      string
	artifactPath string
	registryPath string
)

// TestMain trains one model on the synthetic dataset, saves it and
// registers it as active, the way the trainer CLI does.
func TestMain(m *testing.M) {
	var err error
	workDir, err = os.MkdirTemp("", "credit-e2e-*")
	if err != nil {
		panic(err)
	}

	cfg := training.DefaultConfig()
	cfg.Model.NumRounds = 40
	cfg.Model.MaxDepth = 3
	cfg.Model.LearningRate = 0.3
	cfg.ModelVersion = "e2e-model"

	out, err := training.NewTrainer(cfg, logger.NewNoOpLogger()).Execute(context.Background(), &training.Input{
		Dataset: training.Synthetic(800, 42),
	})
	if err != nil {
		panic(fmt.Sprintf("training failed: %v", err))
	}

	artifactPath = filepath.Join(workDir, "models", "credit_model.json")
	if err := artifact.Save(artifactPath, out.Artifact); err != nil {
		panic(err)
	}

	registryPath = filepath.Join(workDir, "models", "registry.json")
	reg, _ := registry.LoadOrNew(registryPath)
	if err := reg.Register(registry.Model{
		Version:  out.Artifact.ModelVersion,
		Path:     artifactPath,
		Checksum: out.Artifact.Checksum,
		Accuracy: out.Metrics.Accuracy,
		Status:   registry.StatusActive,
	}); err != nil {
		panic(err)
	}
	if err := reg.Save(registryPath); err != nil {
		panic(err)
	}

	code := m.Run()
	os.RemoveAll(workDir)
	os.Exit(code)
}

type stack struct {
	http     *httptest.Server
	server   *server.Server
	recorder *audit.Recorder
	redis    *miniredis.Miniredis
}

// startStack wires the serving path as the scoring server does, with the
// Redis audit sink pointed at miniredis.
func startStack(t *testing.T) *stack {
	t.Helper()
	log := logger.NewTestLogger(t)
	m := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Audit = config.AuditConfig{
		Enabled:      true,
		Sinks:        []string{config.SinkRedis},
		BufferSize:   64,
		WriteTimeout: 1000,
		Stream:       "credit:predictions",
		StreamMaxLen: 1000,
	}
	cfg.Database.Redis.Address = m.Addr()

	recorder, cleanup, err := audit.Setup(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	validator, err := validation.NewApplicantValidator()
	require.NoError(t, err)
	srv, err := server.New(config.ServerConfig{BodyLimit: "64K"}, validator, log)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{http: ts, server: srv, recorder: recorder, redis: m}
}

func (s *stack) loadModel(t *testing.T) {
	t.Helper()
	path, err := registry.ResolveActivePath(registryPath)
	require.NoError(t, err)

	art, err := artifact.Load(path)
	require.NoError(t, err)

	svc, err := scoring.NewService(art, nil, logger.NewTestLogger(t), nil, s.recorder)
	require.NoError(t, err)
	s.server.SetScorer(svc)
}

func applicant(overrides map[string]interface{}) map[string]interface{} {
	base := map[string]interface{}{
		"Age":                      34,
		"Occupation":               "Engineer",
		"Annual_Income":            65000,
		"Monthly_Inhand_Salary":    4500,
		"Num_Bank_Accounts":        4,
		"Num_Credit_Card":          3,
		"Interest_Rate":            15,
		"Num_of_Loan":              2,
		"Delay_from_due_date":      5,
		"Num_of_Delayed_Payment":   1,
		"Changed_Credit_Limit":     1200,
		"Num_Credit_Inquiries":     4,
		"Credit_Mix":               "Good",
		"Outstanding_Debt":         800,
		"Credit_Utilization_Ratio": 30,
		"Payment_of_Min_Amount":    "No",
		"Total_EMI_per_month":      150,
		"Amount_invested_monthly":  80,
		"Payment_Behaviour":        "High_spent_Small_value_payments",
		"Monthly_Balance":          350,
	}
	for k, v := range overrides {
		base[k] = v
	}
	return base
}

func postPredict(t *testing.T, s *stack, query string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.http.URL+"/predict"+query, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getStatus(t *testing.T, s *stack, path string) int {
	t.Helper()
	resp, err := http.Get(s.http.URL + path)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestFullE2E(t *testing.T) {
	s := startStack(t)

	t.Log("Checking health and readiness before the model is loaded")
	assert.Equal(t, http.StatusOK, getStatus(t, s, "/health"))
	assert.Equal(t, http.StatusServiceUnavailable, getStatus(t, s, "/ready"))

	resp, body := postPredict(t, s, "", applicant(nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "MODEL_NOT_LOADED", body["code"])

	s.loadModel(t)
	assert.Equal(t, http.StatusOK, getStatus(t, s, "/ready"))

	t.Run("scenarios", func(t *testing.T) {
		tests := []struct {
			name      string
			overrides map[string]interface{}
			wantScore string
			wantRisk  string
		}{
			{
				name:      "impossible age is capped",
				overrides: map[string]interface{}{"Age": -500},
				wantScore: "Standard",
				wantRisk:  "Medium",
			},
			{
				name: "high risk example",
				overrides: map[string]interface{}{
					"Age": 28, "Annual_Income": 15000, "Outstanding_Debt": 4000, "Credit_Utilization_Ratio": 90,
				},
				wantScore: "Poor",
				wantRisk:  "High",
			},
			{
				name: "lower risk example",
				overrides: map[string]interface{}{
					"Annual_Income": 50000, "Outstanding_Debt": 1200, "Credit_Utilization_Ratio": 35,
				},
				wantScore: "Standard",
				wantRisk:  "Medium",
			},
			{
				name: "raw export noise",
				overrides: map[string]interface{}{
					"Age": "28_", "Annual_Income": "15,000.00_", "Monthly_Balance": "_",
					"Monthly_Inhand_Salary": nil, "Credit_Utilization_Ratio": "90",
				},
				wantScore: "Poor",
				wantRisk:  "High",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, body := postPredict(t, s, "", applicant(tt.overrides))
				require.Equal(t, http.StatusOK, resp.StatusCode, body)

				assert.Equal(t, tt.wantScore, body["credit_score"])
				assert.Equal(t, tt.wantRisk, body["risk_level"])
				assert.Equal(t, "e2e-model", body["model_version"])
				assert.NotEmpty(t, body["prediction_id"])

				probs := body["probability"].(map[string]interface{})
				sum := 0.0
				for _, p := range probs {
					sum += p.(float64)
				}
				assert.InDelta(t, 1.0, sum, 1e-6)
			})
		}
	})

	t.Run("explain", func(t *testing.T) {
		resp, body := postPredict(t, s, "?explain=true", applicant(map[string]interface{}{"Credit_Utilization_Ratio": 90}))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		contributions, ok := body["contributions"].(map[string]interface{})
		require.True(t, ok)
		assert.Len(t, contributions, 25)
	})

	t.Run("validation", func(t *testing.T) {
		bad := applicant(map[string]interface{}{"Credit_Mix": "Excellent"})
		delete(bad, "Occupation")

		resp, body := postPredict(t, s, "", bad)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", body["code"])
		assert.Len(t, body["errors"], 2)
	})

	t.Run("audit stream", func(t *testing.T) {
		require.NoError(t, s.recorder.Close(context.Background()))

		entries, err := s.redis.Stream("credit:predictions")
		require.NoError(t, err)
		assert.Len(t, entries, 5)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(s.http.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		buf := new(bytes.Buffer)
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "credit_predictions_total")
		assert.Contains(t, buf.String(), `credit_pipeline_capped_values_total{field="Age"}`)
	})

	t.Log("Full E2E workflow successful")
}

func TestArtifactTamperingIsFatal(t *testing.T) {
	data, err := os.ReadFile(artifactPath)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["pipeline_version"] = "pipeline/0.1.0"
	tampered, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), fmt.Sprintf("tampered-%d.json", time.Now().UnixNano()))
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, err = artifact.Load(path)
	assert.Error(t, err)
}
