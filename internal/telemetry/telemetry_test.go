package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/config"
)

func TestSetup(t *testing.T) {
	t.Run("none leaves no-op providers", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), &config.Config{OTelExporter: config.ExporterNone}, "test")
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	})

	t.Run("stdout installs providers", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), &config.Config{OTelExporter: config.ExporterStdout}, "test")
		require.NoError(t, err)
		require.NoError(t, shutdown(context.Background()))
	})
}
