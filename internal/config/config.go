// Package config loads server configuration from environment variables
// (with an optional .env file for local development), validates it, and
// exposes it as a typed Config struct.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all server configuration.
//
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Transport
	TCPAddr string `env:"OPCUA_TCP_ADDR" envDefault:":4840"`
	WSAddr  string `env:"OPCUA_WS_ADDR" envDefault:":4843"`

	// SecureChannel
	SecurityPolicy    string        `env:"OPCUA_SECURITY_POLICY" envDefault:"http://opcfoundation.org/UA/SecurityPolicy#None"`
	ChannelLifetime   time.Duration `env:"OPCUA_CHANNEL_LIFETIME" envDefault:"1h"`
	MaxMessageSize    int           `env:"OPCUA_MAX_MESSAGE_SIZE" envDefault:"16777216"`
	TokenRenewalGrace time.Duration `env:"OPCUA_TOKEN_RENEWAL_GRACE" envDefault:"30s"`

	// Session
	MaxSessions        int           `env:"OPCUA_MAX_SESSIONS" envDefault:"500"`
	SessionTimeout     time.Duration `env:"OPCUA_SESSION_TIMEOUT" envDefault:"60s"`
	JWTSecret          string        `env:"OPCUA_JWT_SECRET" envDefault:""`
	JWTIssuedTokenTTL  time.Duration `env:"OPCUA_JWT_TTL" envDefault:"1h"`

	// Subscription
	PublishTickInterval time.Duration `env:"OPCUA_PUBLISH_TICK_INTERVAL" envDefault:"100ms"`

	// Dispatch quotas
	MaxConcurrentRequests int `env:"OPCUA_MAX_CONCURRENT_REQUESTS" envDefault:"100"`
	MaxPendingPublishes   int `env:"OPCUA_MAX_PENDING_PUBLISHES" envDefault:"20"`

	// PubSub broker bindings
	KafkaBrokers       string `env:"OPCUA_KAFKA_BROKERS" envDefault:"localhost:19092"`
	KafkaConsumerGroup string `env:"OPCUA_KAFKA_CONSUMER_GROUP" envDefault:"opcua-pubsub-group"`
	NATSUrl            string `env:"OPCUA_NATS_URL" envDefault:"nats://localhost:4222"`

	// Resource limits (container-aware, read by internal/platform)
	CPULimit    float64 `env:"OPCUA_CPU_LIMIT" envDefault:"1.0"`
	MemoryLimit int64   `env:"OPCUA_MEMORY_LIMIT" envDefault:"536870912"`

	// Monitoring
	MetricsAddr     string        `env:"OPCUA_METRICS_ADDR" envDefault:":9090"`
	MetricsInterval time.Duration `env:"OPCUA_METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"OPCUA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"OPCUA_LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"OPCUA_ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) and environment
// variables, then validates it. Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internally-inconsistent or
// out-of-range values that env.Parse's type coercion cannot catch.
func (c *Config) Validate() error {
	if c.TCPAddr == "" && c.WSAddr == "" {
		return fmt.Errorf("at least one of OPCUA_TCP_ADDR/OPCUA_WS_ADDR must be set")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("OPCUA_MAX_SESSIONS must be > 0, got %d", c.MaxSessions)
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("OPCUA_MAX_CONCURRENT_REQUESTS must be > 0, got %d", c.MaxConcurrentRequests)
	}
	if c.PublishTickInterval <= 0 {
		return fmt.Errorf("OPCUA_PUBLISH_TICK_INTERVAL must be > 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("OPCUA_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("OPCUA_LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as one structured log line,
// Loki-friendly and safe to call at startup after a successful Load.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("tcp_addr", c.TCPAddr).
		Str("ws_addr", c.WSAddr).
		Str("security_policy", c.SecurityPolicy).
		Int("max_sessions", c.MaxSessions).
		Dur("session_timeout", c.SessionTimeout).
		Dur("publish_tick_interval", c.PublishTickInterval).
		Int("max_concurrent_requests", c.MaxConcurrentRequests).
		Str("kafka_brokers", c.KafkaBrokers).
		Str("nats_url", c.NATSUrl).
		Float64("cpu_limit", c.CPULimit).
		Int64("memory_limit_mb", c.MemoryLimit/(1024*1024)).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
