package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/famtree/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{name: "default level is warn", cfg: config.LogConfig{}},
		{name: "json debug", cfg: config.LogConfig{Level: "debug", Format: "json"}},
		{name: "console error", cfg: config.LogConfig{Level: "error", Format: "console"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestNew_Levels(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "info"})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(config.LogConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing log level")
}
