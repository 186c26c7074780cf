package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "module", "internal", "app", "player", "player.go")
	assert.Equal(t, filepath.Join("player", "player.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Output: "stdout", Level: "info", JSON: true})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("track loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "track loaded", entry["message"])
	assert.Contains(t, entry, "time")
	assert.NotContains(t, entry, "caller")
}

func TestNew_DebugAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Output: "file", Level: "debug"})

	logger.Debug().Msg("tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Output: "stderr", Level: "info"})

	logger.Info().Msg("server started")
	assert.Contains(t, buf.String(), "server started")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flowbeat.log")
	closeLog, err := Init(Config{Output: "file", File: path, Level: "info"})
	require.NoError(t, err)

	zlog.Info().Msg("written to file")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	_, err = Init(Config{Output: "file"})
	assert.Error(t, err)
}
