package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoad(t *testing.T) {
	t.Run("loads required config from env", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		require.Equal(t, testSecret, cfg.JWTSecret)
	})

	t.Run("applies defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("HTTP_ADDR", "")
		t.Setenv("LOG_FORMAT", "")
		t.Setenv("OTEL_EXPORTER", "")
		t.Setenv("EXCHANGE_TIMEOUT", "")
		t.Setenv("EXCHANGE_CACHE_TTL", "")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, "console", cfg.LogFormat)
		require.Equal(t, ExporterNone, cfg.OTelExporter)
		require.Equal(t, 5*time.Second, cfg.ExchangeTimeout)
		require.Equal(t, 24*time.Hour, cfg.ExchangeCacheTTL)
	})

	t.Run("loads exchange config from env", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXCHANGE_API_URL", "https://rates.example.com")
		t.Setenv("EXCHANGE_TIMEOUT", "3s")
		t.Setenv("EXCHANGE_CACHE_TTL", "1h")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "https://rates.example.com", cfg.ExchangeAPIURL)
		require.Equal(t, 3*time.Second, cfg.ExchangeTimeout)
		require.Equal(t, time.Hour, cfg.ExchangeCacheTTL)
	})

	t.Run("ignores invalid durations", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXCHANGE_TIMEOUT", "soon")
		t.Setenv("EXCHANGE_CACHE_TTL", "-1h")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, cfg.ExchangeTimeout)
		require.Equal(t, 24*time.Hour, cfg.ExchangeCacheTTL)
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("requires database url and secret", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
		require.Contains(t, err.Error(), "JWT_SECRET is required")
	})

	t.Run("rejects short jwt secret", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("rejects unknown log format", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOG_FORMAT", "xml")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "LOG_FORMAT")
	})

	t.Run("otlp exporter requires endpoint", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_EXPORTER", "otlp")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "OTEL_EXPORTER_OTLP_ENDPOINT")
	})

	t.Run("otlp exporter rejects unknown protocol", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_EXPORTER", "otlp")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "OTEL_EXPORTER_OTLP_PROTOCOL")
	})

	t.Run("accepts otlp grpc", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_EXPORTER", "OTLP")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ExporterOTLP, cfg.OTelExporter)
		require.Equal(t, "grpc", cfg.OTLPProtocol)
	})
}
