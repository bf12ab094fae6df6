package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/logger"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "api", "warn", "json")

	log.Info("dropped")
	log.Warn("kept", "provider", "pricing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "api", entry["service"])
	require.Equal(t, "pricing", entry["provider"])
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "worker", "", "")

	log.Debug("hidden")
	log.Info("visible")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=visible")
	require.Contains(t, buf.String(), "service=worker")
}
