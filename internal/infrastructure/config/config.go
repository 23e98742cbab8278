package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Ops           OpsConfig           `mapstructure:"ops"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Capture       CaptureConfig       `mapstructure:"capture"`
	Events        EventsConfig        `mapstructure:"events"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

// OpsConfig configures the operational HTTP endpoint (health, metrics).
type OpsConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// CaptureConfig tunes the capture queue processor. MaxRetries is the retry
// budget per charge; VisibilityTimeout is how long an unacked message stays
// invisible before redelivery.
type CaptureConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BatchSize         int           `mapstructure:"batch_size"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	ConsumerGroup     string        `mapstructure:"consumer_group"`
}

// EventsConfig tunes the outbox. EmitRetryDelay is how long a failed emit
// is left alone before the sweeper may retry it.
type EventsConfig struct {
	EmitStateTransitionEvents bool          `mapstructure:"emit_state_transition_events"`
	EmitRetryDelay            time.Duration `mapstructure:"emit_retry_delay"`
	SweepInterval             time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize            int           `mapstructure:"sweep_batch_size"`
}

// GatewayConfig tunes the per-provider circuit breakers.
type GatewayConfig struct {
	BreakerMaxRequests uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval    time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
	BreakerThreshold   uint32        `mapstructure:"breaker_threshold"`
}

// LedgerConfig points at the external ledger-of-record read API.
type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAYCONNECTOR")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pay-connector")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		errs = append(errs, fmt.Errorf("ops.port must be between 1 and 65535, got %d", c.Ops.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Capture.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("capture.max_retries must not be negative"))
	}
	if c.Capture.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.batch_size must be positive"))
	}
	if c.Capture.VisibilityTimeout <= 0 {
		errs = append(errs, fmt.Errorf("capture.visibility_timeout must be positive"))
	}
	if c.Events.EmitRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("events.emit_retry_delay must be positive"))
	}
	if c.Events.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("events.sweep_batch_size must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Ops defaults
	v.SetDefault("ops.port", 9090)
	v.SetDefault("ops.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payconnector")
	v.SetDefault("database.database", "payconnector")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Capture defaults
	v.SetDefault("capture.max_retries", 48)
	v.SetDefault("capture.batch_size", 10)
	v.SetDefault("capture.block_duration", "1s")
	v.SetDefault("capture.visibility_timeout", "1m")
	v.SetDefault("capture.consumer_group", "capture-processors")

	// Events defaults
	v.SetDefault("events.emit_state_transition_events", true)
	v.SetDefault("events.emit_retry_delay", "1m")
	v.SetDefault("events.sweep_interval", "2m")
	v.SetDefault("events.sweep_batch_size", 100)

	// Gateway defaults
	v.SetDefault("gateway.breaker_max_requests", 3)
	v.SetDefault("gateway.breaker_interval", "60s")
	v.SetDefault("gateway.breaker_timeout", "30s")
	v.SetDefault("gateway.breaker_threshold", 10)

	// Ledger defaults
	v.SetDefault("ledger.base_url", "http://localhost:10700")
	v.SetDefault("ledger.timeout", "5s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "pay-connector-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
