package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wonny/tradecraft/pkg/config"
)

// Field keys shared by every component, so run logs can be joined
const (
	FieldRunID  = "run_id"
	FieldStage  = "stage"
	FieldTicker = "ticker"
)

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger from config, writing to stdout
func New(cfg *config.Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a Logger that writes to out. LOG_FORMAT=console|pretty
// renders human-readable lines, anything else JSON.
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
func NewWithWriter(cfg *config.Config, out io.Writer) *Logger {
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	// 레벨은 인스턴스 단위 (전역 레벨은 건드리지 않음)
	zlog := zerolog.New(out).
		Level(parseLogLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("service", "tradecraft").
		Str("env", cfg.Env).
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything (tests, library defaults)
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel maps LOG_LEVEL to a zerolog level; unknown values fall back to info
func parseLogLevel(levelStr string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(levelStr))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Level reports the minimum level this logger writes
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// WithRun scopes the logger to one pipeline run
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldRunID, runID).Logger()}
}

// WithStage scopes the logger to one pipeline stage
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldStage, stage).Logger()}
}

// WithTicker scopes the logger to one instrument (upper-cased)
func (l *Logger) WithTicker(ticker string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldTicker, strings.ToUpper(ticker)).Logger()}
}
