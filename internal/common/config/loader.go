// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Audit sink names accepted in audit.sinks.
const (
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml when
// present, expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv applies the handful of deployment variables that must win
// over the YAML files.
func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("MODEL_ARTIFACT_PATH"); val != "" {
		cfg.Model.ArtifactPath = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
		cfg.Observability.JaegerEndpoint = val
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "credit-risk-engine"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = "64K"
	}

	if cfg.Model.ArtifactPath == "" {
		cfg.Model.ArtifactPath = "models/credit_model.json"
	}
	if cfg.Model.LoadRetries == 0 {
		cfg.Model.LoadRetries = 3
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "models/registry.json"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1024
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = 2000
	}
	if cfg.Audit.Table == "" {
		cfg.Audit.Table = "prediction_audit"
	}
	if cfg.Audit.Stream == "" {
		cfg.Audit.Stream = "credit:predictions"
	}
	if cfg.Audit.StreamMaxLen == 0 {
		cfg.Audit.StreamMaxLen = 100000
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	applyTrainingDefaults(&cfg.Training)
}

func applyTrainingDefaults(t *TrainingConfig) {
	if t.DataPath == "" {
		t.DataPath = "data/train.csv"
	}
	if t.ArtifactPath == "" {
		t.ArtifactPath = "models/credit_model.json"
	}
	if t.Seed == 0 {
		t.Seed = 42
	}
	if t.TestSize == 0 {
		t.TestSize = 0.2
	}
	if t.GroupKey == "" {
		t.GroupKey = "Occupation"
	}

	m := &t.Model
	if m.NumRounds == 0 {
		m.NumRounds = 200
	}
	if m.MaxDepth == 0 {
		m.MaxDepth = 6
	}
	if m.LearningRate == 0 {
		m.LearningRate = 0.1
	}
	if m.Lambda == 0 {
		m.Lambda = 1.0
	}
	if m.MinChildWeight == 0 {
		m.MinChildWeight = 1.0
	}
	if m.Subsample == 0 {
		m.Subsample = 1.0
	}
	if m.MaxBins == 0 {
		m.MaxBins = 255
	}

	c := &t.Capping
	if c.LowerPercentile == 0 && c.UpperPercentile == 0 {
		c.LowerPercentile = 0.01
		c.UpperPercentile = 0.99
	}
	if c.Fixed == nil {
		c.Fixed = map[string]BoundConfig{
			"Age":               {Lower: 18, Upper: 100},
			"Num_Bank_Accounts": {Lower: 0, Upper: 20},
		}
	}

	f := &t.Features
	if f.DTISentinel == 0 {
		f.DTISentinel = 999
	}
	if f.CardLimitProxy == 0 {
		f.CardLimitProxy = 5000
	}
	if f.InconsistencyThreshold == 0 {
		f.InconsistencyThreshold = 0.5
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}

	if cfg.Model.UseRegistry && cfg.Registry.Path == "" {
		return fmt.Errorf("registry.path is required when model.use_registry is set")
	}

	if cfg.Audit.Enabled {
		if len(cfg.Audit.Sinks) == 0 {
			return fmt.Errorf("audit.sinks must name at least one sink when audit is enabled")
		}
		for _, sink := range cfg.Audit.Sinks {
			switch sink {
			case SinkPostgres:
				if cfg.Database.Postgres.Host == "" {
					return fmt.Errorf("database.postgres.host is required")
				}
				if cfg.Database.Postgres.Database == "" {
					return fmt.Errorf("database.postgres.database is required")
				}
				if cfg.Database.Postgres.User == "" {
					return fmt.Errorf("database.postgres.user is required")
				}
			case SinkRedis:
				if cfg.Database.Redis.Address == "" {
					return fmt.Errorf("database.redis.address is required")
				}
			default:
				return fmt.Errorf("audit.sinks: unknown sink %q", sink)
			}
		}
	}

	return validateTraining(&cfg.Training)
}

func validateTraining(t *TrainingConfig) error {
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return fmt.Errorf("training.test_size must be in (0, 1), got %v", t.TestSize)
	}

	m := t.Model
	if m.NumRounds < 1 || m.MaxDepth < 1 {
		return fmt.Errorf("training.model: num_rounds and max_depth must be positive")
	}
	if m.LearningRate <= 0 || m.LearningRate > 1 {
		return fmt.Errorf("training.model.learning_rate must be in (0, 1], got %v", m.LearningRate)
	}
	if m.Subsample <= 0 || m.Subsample > 1 {
		return fmt.Errorf("training.model.subsample must be in (0, 1], got %v", m.Subsample)
	}
	if m.MaxBins < 2 || m.MaxBins > 255 {
		return fmt.Errorf("training.model.max_bins must be in 2..255, got %d", m.MaxBins)
	}
	if m.Lambda < 0 || m.Gamma < 0 || m.MinChildWeight < 0 {
		return fmt.Errorf("training.model: lambda, gamma and min_child_weight must be non-negative")
	}

	c := t.Capping
	if c.LowerPercentile < 0 || c.UpperPercentile > 1 || c.LowerPercentile >= c.UpperPercentile {
		return fmt.Errorf("training.capping: need 0 <= lower_percentile < upper_percentile <= 1")
	}
	for field, b := range c.Fixed {
		if b.Lower > b.Upper {
			return fmt.Errorf("training.capping.fixed.%s: lower %v above upper %v", field, b.Lower, b.Upper)
		}
	}

	if t.Features.CardLimitProxy <= 0 {
		return fmt.Errorf("training.features.card_limit_proxy must be positive")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
