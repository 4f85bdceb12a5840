package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/orderflow/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", false)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("warn", true)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestSetupTracingSDK_WithoutEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracingSDK(context.Background(), config.Config{})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupLoggingSDK_WithoutEndpoint(t *testing.T) {
	shutdown, err := SetupLoggingSDK(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupSDKs_WithEndpoint(t *testing.T) {
	cfg := config.Config{OtelEndpoint: "localhost:4318", OtelAuthHeader: "Basic dGVzdA=="}

	logShutdown, err := SetupLoggingSDK(context.Background(), cfg)
	require.NoError(t, err)
	_, traceShutdown, err := SetupTracingSDK(context.Background(), cfg)
	require.NoError(t, err)

	// nothing was exported so shutdown does not need the collector
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = traceShutdown(ctx)
	_ = logShutdown(ctx)
}
