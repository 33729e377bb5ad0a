package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/novamet/tradesite/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Environment is "development", "staging" or "production". It gates
	// the HTTPS redirect and the default log verbosity.
	Environment string `yaml:"environment"`

	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Audit         AuditConfig         `yaml:"audit"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig selects the relational backend shared by the lead store
// and the audit ledger
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig is optional; when Addr is set the rate limiter windows are
// shared across instances instead of kept per process
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuditConfig controls ledger retention
type AuditConfig struct {
	// RetentionDays is how long ledger rows are kept; 0 disables the sweep
	RetentionDays int `yaml:"retention_days"`
	// SweepSchedule is a cron expression for the retention sweep
	SweepSchedule string `yaml:"sweep_schedule"`
}

// AuthConfig holds the static admin token table. Format per entry:
// "token:userID:username:role".
type AuthConfig struct {
	AdminTokens []string `yaml:"admin_tokens"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel `yaml:"-"`
	// LogLevelName is the yaml/env spelling of LogLevel
	LogLevelName string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig builds the configuration from defaults, then an optional
// YAML file (TRADESITE_CONFIG_FILE or the path argument), then
// environment variables. Later layers win.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("TRADESITE_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.Observability.LogLevel = observability.ParseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "tradesite.db",
		},
		Audit: AuditConfig{
			RetentionDays: 365,
			SweepSchedule: "0 3 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "tradesite",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("TRADESITE_ENVIRONMENT", cfg.Environment)

	cfg.Server.Host = getEnv("TRADESITE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("TRADESITE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("TRADESITE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("TRADESITE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("TRADESITE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("TRADESITE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("TRADESITE_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.Driver = getEnv("TRADESITE_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("TRADESITE_DB_DSN", cfg.Database.DSN)

	cfg.Redis.Addr = getEnv("TRADESITE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("TRADESITE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("TRADESITE_REDIS_DB", cfg.Redis.DB)

	cfg.Audit.RetentionDays = getEnvInt("TRADESITE_AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)
	cfg.Audit.SweepSchedule = getEnv("TRADESITE_AUDIT_SWEEP_SCHEDULE", cfg.Audit.SweepSchedule)

	if tokens := getEnv("TRADESITE_ADMIN_TOKENS", ""); tokens != "" {
		cfg.Auth.AdminTokens = strings.Split(tokens, ",")
	}

	cfg.Observability.LogLevelName = getEnv("TRADESITE_LOG_LEVEL", cfg.Observability.LogLevelName)
	cfg.Observability.MetricsEnabled = getEnvBool("TRADESITE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("TRADESITE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("TRADESITE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("TRADESITE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("TRADESITE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("TRADESITE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.Environment)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days cannot be negative")
	}

	for _, entry := range c.Auth.AdminTokens {
		if len(strings.SplitN(entry, ":", 4)) != 4 {
			return fmt.Errorf("invalid admin token entry (want token:userID:username:role)")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
