package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "WARN", Format: "json", Output: &buf})

	l.Info("dropped")
	l.Warn("kept", "table", "db.t")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "db.t", entry["table"])
}

func TestInitSetsGlobal(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{Level: "DEBUG", Format: "text", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	assert.Same(t, l, Get())
	Get().Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
