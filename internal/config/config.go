// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Exporter names accepted by OTEL_EXPORTER.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const minJWTSecretLength = 32

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr         string
	DatabaseURL      string
	JWTSecret        string
	LogLevel         string
	LogFormat        string
	ExchangeAPIURL   string
	ExchangeTimeout  time.Duration
	ExchangeCacheTTL time.Duration
	OTelExporter     string
	OTLPEndpoint     string
	OTLPProtocol     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogFormat:      strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		ExchangeAPIURL: strings.TrimSpace(os.Getenv("EXCHANGE_API_URL")),
		OTelExporter:   strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTLPProtocol:   strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.OTelExporter == "" {
		cfg.OTelExporter = ExporterNone
	}
	if cfg.OTLPProtocol == "" {
		cfg.OTLPProtocol = "http/protobuf"
	}

	cfg.ExchangeTimeout = 5 * time.Second
	if raw := os.Getenv("EXCHANGE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.ExchangeTimeout = d
		}
	}
	cfg.ExchangeCacheTTL = 24 * time.Hour
	if raw := os.Getenv("EXCHANGE_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.ExchangeCacheTTL = d
		}
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	switch {
	case c.JWTSecret == "":
		errs = append(errs, "JWT_SECRET is required")
	case len(c.JWTSecret) < minJWTSecretLength:
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_EXPORTER=otlp")
		}
		if c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http/protobuf" {
			errs = append(errs, "OTEL_EXPORTER_OTLP_PROTOCOL must be grpc or http/protobuf")
		}
	default:
		errs = append(errs, "OTEL_EXPORTER must be none, stdout or otlp")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
