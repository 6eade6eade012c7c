package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Reasoning      ReasoningConfig
	Audit          AuditConfig
	Auth           AuthConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	RunMigrations bool   `mapstructure:"run_migrations"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string    `mapstructure:"brokers"`
	DecisionTopic string      `mapstructure:"decision_topic"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReasoningConfig configures the external reasoning service. The interpret
// and evaluate budgets are independent because a full-rule-set evaluation is
// allowed more time than a single-rule decomposition.
type ReasoningConfig struct {
	Provider         string        `mapstructure:"provider"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	InterpretTimeout time.Duration `mapstructure:"interpret_timeout"`
	EvaluateTimeout  time.Duration `mapstructure:"evaluate_timeout"`
}

type AuditConfig struct {
	RateLimit               RateLimitConfig `mapstructure:"rate_limit"`
	DecisionCacheTTLSeconds int             `mapstructure:"decision_cache_ttl_seconds"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

// AuthConfig maps API keys to principal names. Mutating endpoints require a
// key; the principal is recorded as changed_by.
type AuthConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	APIKeys map[string]string `mapstructure:"api_keys"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

const (
	DefaultInterpretTimeout = 60 * time.Second
	DefaultEvaluateTimeout  = 90 * time.Second
)

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
