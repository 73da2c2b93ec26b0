package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/verdict/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          MailConfig          `yaml:"mail"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
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

// DatabaseConfig selects the SQL driver and connection pool
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres or sqlite3
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig holds token and confirmation code settings
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	CodeTTL    time.Duration `yaml:"code_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	SweepCron  string        `yaml:"sweep_cron"`
	Issuer     string        `yaml:"issuer"`
}

// MailConfig configures the outgoing mail transport
type MailConfig struct {
	Transport string `yaml:"transport"` // smtp or log
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	From      string `yaml:"from"`

	// Timeout bounds a single delivery, dial included
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls throttling of the /auth endpoints
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	RedisURL string        `yaml:"redis_url"`

	// TrustedProxies lists the CIDR blocks or addresses whose X-Forwarded-For is believed
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the built-in configuration used before any overlay is applied
func Default() *Config {
	return &Config{
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
			Driver:          "sqlite3",
			URL:             "file:verdict.db?_foreign_keys=on",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CodeTTL:    24 * time.Hour,
			BcryptCost: 10,
			SweepCron:  "@every 10m",
			Issuer:     "verdict",
		},
		Mail: MailConfig{
			Transport: "log",
			Port:      25,
			From:      "noreply@verdict.local",
			Timeout:   10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 20,
			Window:   time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "verdict",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration from an optional YAML file named by VERDICT_CONFIG_FILE,
// then applies environment variable overrides
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("VERDICT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("VERDICT_HOST", s.Host)
	s.Port = getEnv("VERDICT_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("VERDICT_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("VERDICT_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("VERDICT_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("VERDICT_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("VERDICT_HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Driver = getEnv("VERDICT_DB_DRIVER", d.Driver)
	d.URL = getEnv("VERDICT_DB_URL", d.URL)
	d.MaxOpenConns = getEnvInt("VERDICT_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("VERDICT_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("VERDICT_DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)

	a := &c.Auth
	a.JWTSecret = getEnv("VERDICT_JWT_SECRET", a.JWTSecret)
	a.TokenTTL = getEnvDuration("VERDICT_TOKEN_TTL", a.TokenTTL)
	a.CodeTTL = getEnvDuration("VERDICT_CODE_TTL", a.CodeTTL)
	a.BcryptCost = getEnvInt("VERDICT_BCRYPT_COST", a.BcryptCost)
	a.SweepCron = getEnv("VERDICT_CODE_SWEEP_CRON", a.SweepCron)
	a.Issuer = getEnv("VERDICT_TOKEN_ISSUER", a.Issuer)

	m := &c.Mail
	m.Transport = getEnv("VERDICT_MAIL_TRANSPORT", m.Transport)
	m.Host = getEnv("VERDICT_SMTP_HOST", m.Host)
	m.Port = getEnvInt("VERDICT_SMTP_PORT", m.Port)
	m.Username = getEnv("VERDICT_SMTP_USERNAME", m.Username)
	m.Password = getEnv("VERDICT_SMTP_PASSWORD", m.Password)
	m.From = getEnv("VERDICT_MAIL_FROM", m.From)
	m.Timeout = getEnvDuration("VERDICT_MAIL_TIMEOUT", m.Timeout)

	r := &c.RateLimit
	r.Enabled = getEnvBool("VERDICT_RATE_LIMIT_ENABLED", r.Enabled)
	r.Requests = getEnvInt("VERDICT_RATE_LIMIT_REQUESTS", r.Requests)
	r.Window = getEnvDuration("VERDICT_RATE_LIMIT_WINDOW", r.Window)
	r.RedisURL = getEnv("VERDICT_REDIS_URL", r.RedisURL)
	r.TrustedProxies = getEnvList("VERDICT_TRUSTED_PROXIES", r.TrustedProxies)

	o := &c.Observability
	o.LogLevel = getEnv("VERDICT_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("VERDICT_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("VERDICT_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("VERDICT_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("VERDICT_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("VERDICT_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("VERDICT_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("VERDICT_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
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
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("confirmation code TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	switch c.Mail.Transport {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			return fmt.Errorf("SMTP host is required for smtp mail transport")
		}
	default:
		return fmt.Errorf("invalid mail transport: %s (must be smtp or log)", c.Mail.Transport)
	}
	if c.Mail.From == "" {
		return fmt.Errorf("mail sender address is required")
	}
	if c.Mail.Timeout <= 0 {
		return fmt.Errorf("mail timeout must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive when enabled")
		}
	}

	for _, proxy := range c.RateLimit.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("invalid trusted proxy: %s", proxy)
		}
	}

	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
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

// Level returns the parsed observability log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
