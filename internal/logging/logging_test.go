package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := New("warn", "json", buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("claim rejected", "order_id", "o-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "claim rejected", entry["msg"])
	assert.Equal(t, "o-1", entry["order_id"])
}

func TestNew_TextDefault(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := New("", "", buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("listening", "port", "8080")
	assert.Contains(t, buf.String(), "msg=listening port=8080")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	_, err := New("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		" info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
