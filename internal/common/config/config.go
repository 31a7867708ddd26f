// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Model         ModelConfig         `mapstructure:"model"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Training      TrainingConfig      `mapstructure:"training"`
	Registry      RegistryConfig      `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	BodyLimit       string `mapstructure:"body_limit"`
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig says where the serving artifact comes from. When
// UseRegistry is set the active registry entry wins over ArtifactPath.
type ModelConfig struct {
	ArtifactPath string `mapstructure:"artifact_path"`
	UseRegistry  bool   `mapstructure:"use_registry"`
	LoadRetries  int    `mapstructure:"load_retries"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuditConfig controls the asynchronous prediction audit trail.
type AuditConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Sinks        []string `mapstructure:"sinks"` // postgres, redis
	BufferSize   int      `mapstructure:"buffer_size"`
	WriteTimeout int      `mapstructure:"write_timeout"` // milliseconds
	Table        string   `mapstructure:"table"`
	Stream       string   `mapstructure:"stream"`
	StreamMaxLen int64    `mapstructure:"stream_max_len"`
}

// ObservabilityConfig holds OpenTelemetry settings. Tracing is off unless a
// Jaeger collector endpoint is set.
type ObservabilityConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// TrainingConfig drives the offline trainer.
type TrainingConfig struct {
	DataPath     string         `mapstructure:"data_path"`
	ArtifactPath string         `mapstructure:"artifact_path"`
	SnapshotPath string         `mapstructure:"snapshot_path"`
	Seed         int64          `mapstructure:"seed"`
	TestSize     float64        `mapstructure:"test_size"`
	GroupKey     string         `mapstructure:"group_key"`
	Model        GBDTConfig     `mapstructure:"model"`
	Capping      CappingConfig  `mapstructure:"capping"`
	Features     FeaturesConfig `mapstructure:"features"`
}

type GBDTConfig struct {
	NumRounds      int     `mapstructure:"num_rounds"`
	MaxDepth       int     `mapstructure:"max_depth"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	Lambda         float64 `mapstructure:"lambda"`
	Gamma          float64 `mapstructure:"gamma"`
	MinChildWeight float64 `mapstructure:"min_child_weight"`
	Subsample      float64 `mapstructure:"subsample"`
	MaxBins        int     `mapstructure:"max_bins"`
}

type CappingConfig struct {
	LowerPercentile float64                `mapstructure:"lower_percentile"`
	UpperPercentile float64                `mapstructure:"upper_percentile"`
	Fixed           map[string]BoundConfig `mapstructure:"fixed"`
}

type BoundConfig struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
}

type FeaturesConfig struct {
	DTISentinel            float64 `mapstructure:"dti_sentinel"`
	CardLimitProxy         float64 `mapstructure:"card_limit_proxy"`
	InconsistencyThreshold float64 `mapstructure:"inconsistency_threshold"`
}

// RegistryConfig points at the model registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
