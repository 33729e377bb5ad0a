// Package config provides application configuration from defaults, an
// optional YAML file, and environment variables. Later layers win.
//
// # Configuration Structure
//
// Server settings:
//
//	TRADESITE_HOST="0.0.0.0"
//	TRADESITE_PORT="8080"
//	TRADESITE_HEALTH_PORT="9090"
//	TRADESITE_READ_TIMEOUT="15s"
//	TRADESITE_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	TRADESITE_DB_DRIVER="postgres"  # postgres, sqlite3
//	TRADESITE_DB_DSN="postgres://localhost/tradesite"
//
// Rate limiting (optional, enables shared windows across instances):
//
//	TRADESITE_REDIS_ADDR="localhost:6379"
//
// Audit ledger retention:
//
//	TRADESITE_AUDIT_RETENTION_DAYS="365"
//	TRADESITE_AUDIT_SWEEP_SCHEDULE="0 3 * * *"
//
// Admin access tokens, one "token:userID:username:role" entry per token:
//
//	TRADESITE_ADMIN_TOKENS="s3cret:u1:anna:admin,0ther:u2:borys:manager"
//
// Observability settings:
//
//	TRADESITE_LOG_LEVEL="info"  # debug, info, warn, error
//	TRADESITE_METRICS_ENABLED="true"
//	TRADESITE_OTEL_ENABLED="false"
//	TRADESITE_OTEL_ENDPOINT="otel-collector:4317"
//
// A YAML file covering the same keys can be supplied via
// TRADESITE_CONFIG_FILE; environment variables override it.
package config
