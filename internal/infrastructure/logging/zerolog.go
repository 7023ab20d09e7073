package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

// ZerologOptions configures the zerolog adapter used by long-running
// services where one JSON object per line is preferred.
type ZerologOptions struct {
	Writer        io.Writer
	Level         string
	HumanReadable bool
	Layer         string
	Component     string
}

// ZerologLogger implements ports.Logger on top of zerolog.
type ZerologLogger struct {
	base   zerolog.Logger
	fields []interface{}
	layer  string
}

// NewZerolog builds a zerolog-backed logger.
func NewZerolog(opts ZerologOptions) (*ZerologLogger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var output io.Writer = writer
	if opts.HumanReadable {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		output = console
	}

	base := zerolog.New(output).Level(level).With().Timestamp().Logger()
	var fields []interface{}
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}
	return &ZerologLogger{base: base, fields: fields, layer: layerOrDefault(opts.Layer)}, nil
}

// Debug emits a debug log entry.
func (l *ZerologLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.DebugLevel, msg, fields...)
}

// Info emits an info log entry.
func (l *ZerologLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.InfoLevel, msg, fields...)
}

// Warn emits a warning log entry.
func (l *ZerologLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.WarnLevel, msg, fields...)
}

// Error emits an error log entry.
func (l *ZerologLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.ErrorLevel, msg, fields...)
}

// With derives a logger with persistent fields.
func (l *ZerologLogger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	return &ZerologLogger{base: l.base, fields: appendFields(l.fields, fields), layer: l.layer}
}

func (l *ZerologLogger) log(ctx context.Context, level zerolog.Level, msg string, fields ...interface{}) {
	if l == nil {
		return
	}
	event := l.base.WithLevel(level)
	if event == nil {
		return
	}
	payload := mergeFields(l.fields, fields, contextFields(ctx, l.layer))
	for i := 0; i+1 < len(payload); i += 2 {
		key, _ := payload[i].(string)
		event = event.Interface(key, payload[i+1])
	}
	event.Msg(msg)
}

var _ ports.Logger = (*ZerologLogger)(nil)
