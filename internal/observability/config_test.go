package observability

import (
	"testing"

	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:        "1.2.3",
		Environment:       "production",
		LogLevel:          "info",
		LogFormat:         "json",
		OTLPEnabled:       true,
		OTLPEndpoint:      "collector:4317",
		OTLPProtocol:      "grpc",
		OTLPSamplingRatio: 3,
	})

	assert.Equal(t, "acquiring", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "test"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
