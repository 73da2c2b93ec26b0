// Package config provides application configuration management.
//
// Configuration starts from built-in defaults, is overlaid by an optional YAML file named
// by VERDICT_CONFIG_FILE and finally by environment variables.
//
// Server settings:
//
//	VERDICT_HOST="0.0.0.0"
//	VERDICT_PORT="8080"
//	VERDICT_HEALTH_PORT="9090"
//
// Database settings:
//
//	VERDICT_DB_DRIVER="postgres"  # postgres or sqlite3
//	VERDICT_DB_URL="postgres://localhost/verdict?sslmode=disable"
//
// Auth settings:
//
//	VERDICT_JWT_SECRET="change-me"
//	VERDICT_TOKEN_TTL="24h"
//	VERDICT_CODE_TTL="24h"
//	VERDICT_BCRYPT_COST="10"
//	VERDICT_CODE_SWEEP_CRON="@every 10m"
//
// Mail settings:
//
//	VERDICT_MAIL_TRANSPORT="smtp"  # smtp or log
//	VERDICT_SMTP_HOST="mail.internal"
//	VERDICT_MAIL_FROM="noreply@verdict.local"
//
// Rate limiting of /auth endpoints:
//
//	VERDICT_RATE_LIMIT_REQUESTS="20"
//	VERDICT_RATE_LIMIT_WINDOW="1m"
//	VERDICT_REDIS_URL="redis://localhost:6379/0"  # optional, enables the shared limiter
//
// Observability:
//
//	VERDICT_LOG_LEVEL="info"
//	VERDICT_OTEL_ENABLED="false"
//	VERDICT_OTEL_ENDPOINT="localhost:4317"
package config
