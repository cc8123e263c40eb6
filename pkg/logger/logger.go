package logger

import (
	"context"
	"fmt"
	multi "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

type Logger interface {
	SetLogLevel(levelStr string)
	GetLogLevel() string

	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)
	Fatal(msg string, err error, args ...any)
}

// Options configures the sinks of a SlogLogger. An empty File disables the
// rotating JSON sink.
type Options struct {
	Level  string
	File   string
	Stdout io.Writer
}

type SlogLogger struct {
	log        *slog.Logger
	level      *slog.LevelVar
	levelNames map[slog.Leveler]string
}

func New(opts Options) *SlogLogger {
	l := &SlogLogger{
		level: &slog.LevelVar{},
		levelNames: map[slog.Leveler]string{
			LevelTrace: "TRACE",
			LevelFatal: "FATAL",
		},
	}
	l.SetLogLevel(opts.Level)

	handlerOpts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       l.level,
		ReplaceAttr: l.replaceAttr,
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	handlers := []slog.Handler{slog.NewTextHandler(out, handlerOpts)}
	if opts.File != "" {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64,
			MaxBackups: 16,
			MaxAge:     14,
			Compress:   true,
		}, handlerOpts))
	}

	l.log = slog.New(multi.Fanout(handlers...))
	return l
}

// NewDiscard returns a logger that drops every record.
func NewDiscard() *SlogLogger {
	return New(Options{Level: "fatal", Stdout: io.Discard})
}

func (l *SlogLogger) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		label, exists := l.levelNames[level]
		if !exists {
			label = level.String()
		}
		a.Value = slog.StringValue(label)
	case slog.SourceKey:
		a.Value = slog.StringValue(callerOutsideLogger(10))
	}

	return a
}

func (l *SlogLogger) SetLogLevel(levelStr string) {
	switch strings.ToLower(levelStr) {
	case "trace":
		l.level.Set(LevelTrace)
	case "debug":
		l.level.Set(slog.LevelDebug)
	case "warn":
		l.level.Set(slog.LevelWarn)
	case "error":
		l.level.Set(slog.LevelError)
	case "fatal":
		l.level.Set(LevelFatal)
	default:
		l.level.Set(slog.LevelInfo)
	}
}

func (l *SlogLogger) GetLogLevel() string {
	switch l.level.Level() {
	case LevelTrace:
		return "trace"
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}

	return "info"
}

func (l *SlogLogger) Trace(msg string, args ...any) {
	l.log.Log(context.Background(), LevelTrace, msg, args...)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

func (l *SlogLogger) Error(msg string, err error, args ...any) {
	l.log.Error(msg, withError(err, args)...)
}

func (l *SlogLogger) Fatal(msg string, err error, args ...any) {
	l.log.Log(context.Background(), LevelFatal, msg, withError(err, args)...)
	os.Exit(1)
}

func withError(err error, args []any) []any {
	if err == nil {
		return args
	}
	return append([]any{slog.String("error", err.Error())}, args...)
}

func callerOutsideLogger(skip int) string {
	for i := skip; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !strings.Contains(file, "pkg/logger") {
			return fmt.Sprintf("%s:%d", file, line)
		}
	}
	return "unknown"
}
