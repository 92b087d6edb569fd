package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		logger, _, err := New(Options{Level: tt.level}, &bytes.Buffer{})
		require.NoError(t, err)
		if logger.GetLevel() != tt.expected {
			t.Errorf("New(level=%q) level = %v, want %v", tt.level, logger.GetLevel(), tt.expected)
		}
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "info"}, &buf)
	require.NoError(t, err)

	logger.Info().Str("category", "search").Msg("cache hit")
	logger.Debug().Msg("hidden")

	assert.Contains(t, buf.String(), `"category":"search"`)
	assert.Contains(t, buf.String(), `"message":"cache hit"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("ready")
	assert.Contains(t, buf.String(), "ready")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestAPILogTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{APILog: true, APIFile: path}, &buf)
	require.NoError(t, err)

	logger.Info().Str("url", "https://example.com").Msg("api call")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "api call")
	assert.Contains(t, buf.String(), "api call")
}
