package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel, format string) (*SmolLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&LoggerConfig{Level: level, Format: format, Output: &buf}), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, "json")
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, nil, "warn")
	logger.Error(ctx, errors.New("boom"), "error")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "warn", records[0]["msg"])
	assert.Equal(t, "error", records[1]["msg"])
	assert.Equal(t, "boom", records[1]["error"])
}

func TestFieldsAndComponent(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, "json")

	logger.WithComponent("cache").
		With("session", "abc").
		Info(context.Background(), "Loaded file", "path", "index.html", "size", 42, "dangling")

	records := decodeLines(t, buf)
	require.Len(t, records, 1)
	assert.Equal(t, "cache", records[0]["component"])
	assert.Equal(t, "abc", records[0]["session"])
	assert.Equal(t, "index.html", records[0]["path"])
	assert.EqualValues(t, 42, records[0]["size"])
	assert.NotContains(t, records[0], "dangling")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, "json")

	_ = logger.With("child", true)
	logger.Info(context.Background(), "parent")

	records := decodeLines(t, buf)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0], "child")
}

func TestTextFormat(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, "text")
	logger.WithComponent("site").Info(context.Background(), "Rebuilt files", "count", 2)

	out := buf.String()
	assert.Contains(t, out, "msg=\"Rebuilt files\"")
	assert.Contains(t, out, "component=site")
	assert.Contains(t, out, "count=2")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("boom"), "dropped")
		logger.WithComponent("x").With("k", "v").Info(context.Background(), "dropped")
	})
}

func TestStartOperation(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, "json")
	ctx := context.Background()

	duration := StartOperation(logger, "build").End(ctx, "rendered", 3)
	assert.GreaterOrEqual(t, int64(duration), int64(0))

	StartOperation(logger, "rebuild").EndWithError(ctx, errors.New("failed"))

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "Operation completed", records[0]["msg"])
	assert.Equal(t, "build", records[0]["operation"])
	assert.EqualValues(t, 3, records[0]["rendered"])
	assert.Contains(t, records[0], "duration")

	assert.Equal(t, "Operation failed", records[1]["msg"])
	assert.Equal(t, "rebuild", records[1]["operation"])
	assert.Equal(t, "failed", records[1]["error"])
}
