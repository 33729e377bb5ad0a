package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/novamet/tradesite/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default for invalid int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "invalid",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default for invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// clearTradesiteEnv unsets every TRADESITE_ variable a test may touch and
// restores the original values on cleanup
func clearTradesiteEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"TRADESITE_CONFIG_FILE",
		"TRADESITE_ENVIRONMENT",
		"TRADESITE_HOST",
		"TRADESITE_PORT",
		"TRADESITE_HEALTH_PORT",
		"TRADESITE_DB_DRIVER",
		"TRADESITE_DB_DSN",
		"TRADESITE_REDIS_ADDR",
		"TRADESITE_AUDIT_RETENTION_DAYS",
		"TRADESITE_AUDIT_SWEEP_SCHEDULE",
		"TRADESITE_ADMIN_TOKENS",
		"TRADESITE_LOG_LEVEL",
		"TRADESITE_OTEL_ENABLED",
		"TRADESITE_OTEL_ENDPOINT",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

// TestLoadConfigDefaults tests the built-in defaults
func TestLoadConfigDefaults(t *testing.T) {
	clearTradesiteEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %v, want development", cfg.Environment)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Driver = %v, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Audit.RetentionDays != 365 {
		t.Errorf("RetentionDays = %v, want 365", cfg.Audit.RetentionDays)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("LogLevel = %v, want InfoLevel", cfg.Observability.LogLevel)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %v, want empty (disabled)", cfg.Redis.Addr)
	}
}

// TestLoadConfigFromEnv tests environment overrides
func TestLoadConfigFromEnv(t *testing.T) {
	clearTradesiteEnv(t)

	os.Setenv("TRADESITE_ENVIRONMENT", "production")
	os.Setenv("TRADESITE_PORT", "3000")
	os.Setenv("TRADESITE_DB_DRIVER", "postgres")
	os.Setenv("TRADESITE_DB_DSN", "postgres://localhost/tradesite")
	os.Setenv("TRADESITE_REDIS_ADDR", "localhost:6379")
	os.Setenv("TRADESITE_AUDIT_RETENTION_DAYS", "90")
	os.Setenv("TRADESITE_ADMIN_TOKENS", "tok1:u1:anna:admin,tok2:u2:borys:manager")
	os.Setenv("TRADESITE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error = %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %v, want production", cfg.Environment)
	}
	if cfg.Server.Port != "3000" {
		t.Errorf("Port = %v, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %v, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://localhost/tradesite" {
		t.Errorf("DSN = %v, want postgres://localhost/tradesite", cfg.Database.DSN)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %v, want localhost:6379", cfg.Redis.Addr)
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("RetentionDays = %v, want 90", cfg.Audit.RetentionDays)
	}
	if len(cfg.Auth.AdminTokens) != 2 {
		t.Errorf("AdminTokens = %v, want 2 entries", cfg.Auth.AdminTokens)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want DebugLevel", cfg.Observability.LogLevel)
	}
}

// TestLoadConfigFromFile tests the YAML file layer and that env wins over it
func TestLoadConfigFromFile(t *testing.T) {
	clearTradesiteEnv(t)

	path := filepath.Join(t.TempDir(), "tradesite.yaml")
	data := `
environment: staging
server:
  port: "8081"
database:
  driver: postgres
  dsn: postgres://db/tradesite
audit:
  retention_days: 180
observability:
  log_level: warn
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv("TRADESITE_PORT", "3000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error = %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("Environment = %v, want staging", cfg.Environment)
	}
	if cfg.Server.Port != "3000" {
		t.Errorf("Port = %v, want 3000 (env overrides file)", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("HealthPort = %v, want 9090 (default kept)", cfg.Server.HealthPort)
	}
	if cfg.Database.DSN != "postgres://db/tradesite" {
		t.Errorf("DSN = %v, want postgres://db/tradesite", cfg.Database.DSN)
	}
	if cfg.Audit.RetentionDays != 180 {
		t.Errorf("RetentionDays = %v, want 180", cfg.Audit.RetentionDays)
	}
	if cfg.Observability.LogLevel != observability.WarnLevel {
		t.Errorf("LogLevel = %v, want WarnLevel", cfg.Observability.LogLevel)
	}
}

// TestLoadConfigMissingFile tests the error path for a bad config path
func TestLoadConfigMissingFile(t *testing.T) {
	clearTradesiteEnv(t)

	if _, err := LoadConfig("/definitely/not/there.yaml"); err == nil {
		t.Error("LoadConfig() expected error for missing file, got nil")
	}
}

// TestConfigValidate tests the Config.Validate method
func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	t.Run("valid defaults", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = "qa"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("missing server port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = ""
		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
		if err != nil && err.Error() != "server port is required" {
			t.Errorf("Validate() error = %v, want 'server port is required'", err.Error())
		}
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("invalid database driver", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Driver = "mysql"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("missing DSN", func(t *testing.T) {
		cfg := valid()
		cfg.Database.DSN = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("negative retention", func(t *testing.T) {
		cfg := valid()
		cfg.Audit.RetentionDays = -1
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("malformed admin token entry", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.AdminTokens = []string{"token-without-fields"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("otel enabled without endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})
}
