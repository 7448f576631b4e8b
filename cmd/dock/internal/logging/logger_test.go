package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalib/dock/cmd/dock/internal/constants"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	return entry
}

func TestNewLogger_DefaultLevel(t *testing.T) {
	logger := NewLogger(LoggerConfig{})
	assert.Equal(t, LevelInfo, logger.config.Level)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"WARN", LevelWarn, false},
		{"", LevelInfo, false},
		{"trace", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelInfo, Format: FormatJSON, Output: &buf, Version: "0.4"})

	logger.Info("Test message")

	entry := decode(t, &buf)
	assert.Equal(t, "Test message", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "0.4", entry["version"])
}

func TestLogger_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf})

	logger.WithField("pid", 42).Warn("stale pid file")

	out := buf.String()
	assert.Regexp(t, `^\[WARN\]\(`, out)
	assert.Contains(t, out, "): stale pid file pid=42")
}

func TestLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: FormatConsole, Output: &buf})

	logger.Info("Test message")

	assert.Contains(t, buf.String(), "Test message")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Debug("debug msg")
	logger.Info("info msg")
	assert.Zero(t, buf.Len(), "no output for debug/info when level is warn")

	logger.Warn("warn msg")
	assert.NotZero(t, buf.Len())
}

func TestLogger_ErrorWithErr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: FormatJSON, Output: &buf})

	logger.ErrorWithErr("exec failed", errors.New("exec format error"))

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "exec failed", entry["message"])
	assert.Equal(t, "exec format error", entry["error"])
}

func TestLogger_MasksSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: FormatJSON, Output: &buf, SensitiveFields: []string{"Cookie"}})

	logger.WithFields(map[string]any{
		"auth_token": "abc123",
		"cookie":     "session",
		"pidfile":    "/srv/app/tmp/pids/puma.pid",
	}).Info("control app")

	entry := decode(t, &buf)
	assert.Equal(t, constants.RedactedPlaceholder, entry["auth_token"])
	assert.Equal(t, constants.RedactedPlaceholder, entry["cookie"], "custom field masked")
	assert.Equal(t, "/srv/app/tmp/pids/puma.pid", entry["pidfile"])
	assert.True(t, logger.IsSensitive("TOKEN"), "case-insensitive match")
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "dock.log")
	logger := NewLogger(LoggerConfig{FilePath: path, Format: FormatJSON})

	logger.Error("boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boom")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerConfig{Format: FormatJSON, Output: &buf})
	t.Cleanup(func() { globalLogger = nil })

	GetLogger().Infof("loaded %s", "config/puma.rb")
	assert.Contains(t, buf.String(), "loaded config/puma.rb")
}
