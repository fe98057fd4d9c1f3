// Package server provides configuration helpers that define runtime defaults,
// validation, and environment/flag loading for the relay service.
package server

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultPort            = ":3490"
	defaultMaxClients      = 10
	defaultMaxMessageSize  = 100
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the relay configuration settings.
type Config struct {
	Port            string        `env:"SERVER_PORT"`
	WebSocketAddr   string        `env:"WEBSOCKET_ADDR"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envSeparator:","`
	MaxClients      int           `env:"MAX_CLIENTS"`
	MaxMessageSize  int           `env:"MAX_MESSAGE_SIZE"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
}

func defaultConfig() Config {
	return Config{
		Port:            defaultPort,
		MaxClients:      defaultMaxClients,
		MaxMessageSize:  defaultMaxMessageSize,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func sanitizeConfig(cfg Config) Config {
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset or non-positive values fall back to defaults via sanitizeConfig.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

// ParseConfig loads the environment first and lets command-line flags
// override it.
func ParseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg, err := NewConfigFromEnv()
	if err != nil {
		return nil, err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.StringVar(&cfg.Port, "addr", cfg.Port, "TCP relay listen address")
	fs.StringVar(&cfg.WebSocketAddr, "ws-addr", cfg.WebSocketAddr, "WebSocket bridge listen address (empty disables it)")
	fs.StringVar(&origins, "allowed-origins", origins, "comma-separated origins allowed on the WebSocket bridge")
	fs.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "maximum concurrent clients")
	fs.IntVar(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "read buffer size in bytes")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "time allowed for workers to exit on shutdown")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint (empty disables tracing)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg.AllowedOrigins = parseOrigins(origins)
	sanitized := sanitizeConfig(*cfg)
	return &sanitized, nil
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
