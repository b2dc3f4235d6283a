package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Logger interface defines the logging methods
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// Alerter receives error and fatal events.
type Alerter interface {
	SendLogMessage(ctx context.Context, level, message string, fields map[string]interface{}) error
}

const (
	alertQueueSize = 32
	alertTimeout   = 5 * time.Second
)

type loggerImpl struct {
	zl     zerolog.Logger
	alerts *alertSender
	// fields attached through With, repeated on alerts
	context map[string]interface{}
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level           zerolog.Level
	Console         bool
	ConsoleOut      io.Writer // defaults to stdout
	File            bool
	FilePath        string
	MaxSizeMB       int
	MaxBackups      int
	MaxAgeDays      int
	Compress        bool
	TimeFieldFormat string
	Alerter         Alerter
}

// DefaultLoggerConfig returns console plus rotating file output at info level.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:           zerolog.InfoLevel,
		Console:         true,
		File:            true,
		FilePath:        "bikeshare.log",
		MaxSizeMB:       10,
		MaxBackups:      5,
		MaxAgeDays:      30,
		Compress:        true,
		TimeFieldFormat: time.RFC3339,
	}
}

// NewFromConfig builds a logger writing to the configured sinks.
func NewFromConfig(cfg LoggerConfig) Logger {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFieldFormat, NoColor: out != os.Stdout})
	}

	if cfg.File && cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	if cfg.TimeFieldFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFieldFormat
	}

	l := &loggerImpl{
		zl: zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(cfg.Level),
	}
	if cfg.Alerter != nil {
		l.alerts = newAlertSender(cfg.Alerter)
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &loggerImpl{zl: zerolog.Nop()}
}

// ParseLogLevel maps a config string to a zerolog level, defaulting to info.
func ParseLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *loggerImpl) Info(msg string, fields ...interface{}) {
	logWithFields(l.zl.Info(), msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...interface{}) {
	logWithFields(l.zl.Warn(), msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...interface{}) {
	logWithFields(l.zl.Error(), msg, fields...)
	if l.alerts != nil {
		l.alerts.enqueue(alert{level: "ERROR", msg: msg, fields: l.alertFields(fields)})
	}
}

func (l *loggerImpl) Debug(msg string, fields ...interface{}) {
	logWithFields(l.zl.Debug(), msg, fields...)
}

// Fatal logs a fatal message and exits. The alert is delivered before exiting.
func (l *loggerImpl) Fatal(msg string, fields ...interface{}) {
	if l.alerts != nil {
		l.alerts.deliver(alert{level: "FATAL", msg: msg, fields: l.alertFields(fields)})
	}
	logWithFields(l.zl.Fatal(), msg, fields...)
}

// With returns a child logger carrying the given key-value pairs on every event.
func (l *loggerImpl) With(fields ...interface{}) Logger {
	ctx := l.zl.With()
	merged := make(map[string]interface{}, len(l.context)+len(fields)/2)
	for k, v := range l.context {
		merged[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
		merged[key] = fields[i+1]
	}
	return &loggerImpl{zl: ctx.Logger(), alerts: l.alerts, context: merged}
}

func (l *loggerImpl) alertFields(fields []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(l.context)+len(fields)/2)
	for k, v := range l.context {
		out[k] = v
	}
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]interface{}); ok {
			for k, v := range m {
				out[k] = v
			}
			return out
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			out[key] = fields[i+1]
		}
	}
	return out
}

// logWithFields adds structured fields to the event
func logWithFields(event *zerolog.Event, msg string, fields ...interface{}) {
	if event == nil {
		return
	}
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]interface{}); ok {
			event.Fields(m).Msg(msg)
			return
		}
	}
	if len(fields)%2 == 0 {
		for i := 0; i < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			if key == "error" {
				if err, ok := fields[i+1].(error); ok && err != nil {
					event = event.Err(err)
					continue
				}
			}
			event = event.Interface(key, fields[i+1])
		}
	}
	event.Msg(msg)
}

type alert struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// alertSender delivers alerts off the logging goroutine. Alerts are dropped
// when the queue is full.
type alertSender struct {
	alerter Alerter
	queue   chan alert
}

func newAlertSender(a Alerter) *alertSender {
	s := &alertSender{alerter: a, queue: make(chan alert, alertQueueSize)}
	go s.run()
	return s
}

func (s *alertSender) enqueue(a alert) {
	select {
	case s.queue <- a:
	default:
		fmt.Fprintf(os.Stderr, "alert queue full, dropping %q\n", a.msg)
	}
}

func (s *alertSender) run() {
	for a := range s.queue {
		s.deliver(a)
	}
}

func (s *alertSender) deliver(a alert) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err := s.alerter.SendLogMessage(ctx, a.level, a.msg, a.fields); err != nil {
		fmt.Fprintf(os.Stderr, "alert delivery failed: %v\n", err)
	}
}
