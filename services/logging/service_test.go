package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewService(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.NotNil(t, service.logger)
	})

	t.Run("console format", func(t *testing.T) {
		service, err := NewService(Config{Level: Debug, Format: "console", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		service, err := NewService(Config{Level: Warn, Format: "json", OutputPath: logFile})

		require.NoError(t, err)
		assert.NotNil(t, service)
		service.Warn("written to file", zap.String("key", "value"))
		require.NoError(t, service.Sync())
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel(Debug).String())
	assert.Equal(t, "info", parseLogLevel(Info).String())
	assert.Equal(t, "warn", parseLogLevel(Warn).String())
	assert.Equal(t, "error", parseLogLevel(Error).String())
	assert.Equal(t, "info", parseLogLevel("bogus").String())
}

func TestNilServiceIsSafe(t *testing.T) {
	var service *Service

	assert.NotPanics(t, func() {
		service.Debug("debug")
		service.Info("info")
		service.Warn("warn")
		service.Error("error")
		service.Infof("formatted %d", 1)
	})
	assert.Nil(t, service.Logger())
	assert.NoError(t, service.Sync())
}
