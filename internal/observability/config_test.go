package observability

import (
	"testing"

	"github.com/chrisfit/storefront/internal/config"
	"github.com/chrisfit/storefront/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadConfig(config.Config{AppName: "", AppVersion: "1.2.3", Environment: "production"})

	assert.Equal(t, "storefront", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	cfg := Config{Environment: "development", LogLevel: "info"}
	assert.True(t, cfg.Debug())
}

func TestSamplingRatioFollowsEnvironment(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")

	assert.Equal(t, 0.1, LoadConfig(config.Config{Environment: "production"}).OtelSamplingRatio)
	assert.Equal(t, 1.0, LoadConfig(config.Config{Environment: "development"}).OtelSamplingRatio)

	t.Setenv("OTEL_SAMPLING_RATIO", "4")
	assert.Equal(t, 1.0, LoadConfig(config.Config{Environment: "production"}).OtelSamplingRatio)
	t.Setenv("OTEL_SAMPLING_RATIO", "-1")
	assert.Equal(t, 0.0, LoadConfig(config.Config{Environment: "production"}).OtelSamplingRatio)
}

func TestRegisterLogsSettings(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	register(Config{ServiceName: "storefront", Environment: "test", OtelSamplingRatio: 1}, metrics.Config{}, nil, zap.New(core))

	entries := logs.FilterMessage("observability configured").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "storefront", entries[0].ContextMap()["service"])
	assert.NotNil(t, metrics.Scheduler())
}
