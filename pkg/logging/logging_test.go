package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gentle.log")
	logger, err := New(Config{Level: "info", Output: "none", File: path})
	require.NoError(t, err)

	logger.Info("stored content")
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"stored content"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Output: "syslog"})
	assert.ErrorContains(t, err, "invalid log output")
}

func TestNew_NoOutputs(t *testing.T) {
	logger, err := New(Config{Output: "none"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
	logger.Error("dropped")
}
