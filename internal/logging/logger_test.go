package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apirequests/internal/logging"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestLogger_WritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New(&buf, "apireq", zerolog.DebugLevel)
	logger.Info("API Request", map[string]interface{}{"method": "GET", "url": "/users"})

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "API Request", entry["message"])
	assert.Equal(t, "apireq", entry["role"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/users", entry["url"])

	_, hasTime := entry["time"]
	assert.True(t, hasTime)
}

func TestLogger_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New(&buf, "apireq", zerolog.InfoLevel)
	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Warn("shown", nil)
	assert.Equal(t, "warn", decodeEntry(t, &buf)["level"])
}

func TestLogger_ErrorField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New(&buf, "apireq", zerolog.DebugLevel)
	logger.Error("API Response Error", map[string]interface{}{
		"error":  errors.New("boom"),
		"status": 500,
	})

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.InDelta(t, 500, entry["status"], 0)
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New(&buf, "apireq", zerolog.DebugLevel).With(map[string]interface{}{"service": "users"})
	logger.Info("call", nil)

	assert.Equal(t, "users", decodeEntry(t, &buf)["service"])
}

func TestNop_DiscardsOutput(t *testing.T) {
	t.Parallel()

	logger := logging.Nop()
	require.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Debug("x", nil)
		logger.Info("x", map[string]interface{}{"a": 1})
		logger.Warn("x", nil)
		logger.Error("x", nil)
	})
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.NewConsole(&buf, false)
	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Info("visible", map[string]interface{}{"k": "v"})
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "k=v")
}
