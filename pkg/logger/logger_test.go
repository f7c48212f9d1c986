package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&config.Config{Env: "test", LogLevel: level, LogFormat: "json"}, buf)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestLevelIsPerLogger(t *testing.T) {
	before := zerolog.GlobalLevel()

	var quiet, loud bytes.Buffer
	q := newBufferLogger(&quiet, "error")
	l := newBufferLogger(&loud, "debug")

	assert.Equal(t, zerolog.ErrorLevel, q.Level())
	assert.Equal(t, zerolog.DebugLevel, l.Level())
	assert.Equal(t, before, zerolog.GlobalLevel(), "global level untouched")

	q.Info("dropped")
	l.Debug("kept")
	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "kept")

	// derived loggers keep the level
	q.WithRun("run-1").Warn("dropped")
	assert.Empty(t, quiet.String())
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, "debug")

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { log.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { log.Info("info message") }, "info message", "info"},
		{"warn", func() { log.Warn("warn message") }, "warn message", "warn"},
		{"error", func() { log.Error("error message") }, "error message", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decode(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["message"])
			assert.Equal(t, "tradecraft", entry["service"])
			assert.Equal(t, "test", entry["env"])
		})
	}
}

func TestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, "info")

	log.WithRun("run-1700000000000-0a1b2c3d").
		WithStage("risk_manager").
		WithTicker("nvda").
		WithFields(map[string]interface{}{"size_pct": 8.0}).
		WithError(errors.New("dispatch failed")).
		Info("stage complete")

	entry := decode(t, &buf)
	assert.Equal(t, "run-1700000000000-0a1b2c3d", entry[FieldRunID])
	assert.Equal(t, "risk_manager", entry[FieldStage])
	assert.Equal(t, "NVDA", entry[FieldTicker])
	assert.Equal(t, 8.0, entry["size_pct"])
	assert.Equal(t, "dispatch failed", entry["error"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithField("k", "v").WithTicker("spy").Info("discarded")
	})
}

func TestLogFormats(t *testing.T) {
	for _, format := range []string{"json", "console", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: format}, &buf)
			log.Info("test message")
			assert.Contains(t, buf.String(), "test message")
		})
	}
}
