package logging

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const defaultBufferLimit = 1000

// Level identifies the severity of a buffered entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Entry is one buffered log call.
type Entry struct {
	Ctx    context.Context
	Level  Level
	Msg    string
	Fields []interface{}
}

// Field returns the value recorded for key, if any.
func (e Entry) Field(key string) (interface{}, bool) {
	for i := 0; i+1 < len(e.Fields); i += 2 {
		if k, ok := e.Fields[i].(string); ok && k == key {
			return e.Fields[i+1], true
		}
	}
	return nil, false
}

// EventBuffer stores log entries emitted before the primary logger is
// ready. It keeps at most limit entries, dropping the oldest.
type EventBuffer struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

// NewEventBuffer creates a buffer with the provided capacity (defaults to 1000).
func NewEventBuffer(limit int) *EventBuffer {
	if limit <= 0 {
		limit = defaultBufferLimit
	}
	return &EventBuffer{limit: limit, entries: make([]Entry, 0, limit)}
}

func (b *EventBuffer) add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == b.limit {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
		return
	}
	b.entries = append(b.entries, entry)
}

// Entries returns a snapshot of the buffered entries.
func (b *EventBuffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Flush replays buffered entries on delegate in order and empties the buffer.
func (b *EventBuffer) Flush(delegate ports.Logger) {
	if delegate == nil {
		return
	}
	b.mu.Lock()
	entries := append([]Entry(nil), b.entries...)
	b.entries = b.entries[:0]
	b.mu.Unlock()

	for _, entry := range entries {
		switch entry.Level {
		case LevelDebug:
			delegate.Debug(entry.Ctx, entry.Msg, entry.Fields...)
		case LevelWarn:
			delegate.Warn(entry.Ctx, entry.Msg, entry.Fields...)
		case LevelError:
			delegate.Error(entry.Ctx, entry.Msg, entry.Fields...)
		default:
			delegate.Info(entry.Ctx, entry.Msg, entry.Fields...)
		}
	}
}

// BufferedLogger implements ports.Logger by writing into an EventBuffer.
type BufferedLogger struct {
	buffer *EventBuffer
	fields []interface{}
}

// NewBufferedLogger returns a logger that stores entries in the provided buffer.
func NewBufferedLogger(buffer *EventBuffer) *BufferedLogger {
	return &BufferedLogger{buffer: buffer}
}

func (l *BufferedLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelDebug, msg, fields...)
}

func (l *BufferedLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelInfo, msg, fields...)
}

func (l *BufferedLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelWarn, msg, fields...)
}

func (l *BufferedLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelError, msg, fields...)
}

// With returns a child buffered logger with persistent fields.
func (l *BufferedLogger) With(fields ...interface{}) ports.Logger {
	return &BufferedLogger{buffer: l.buffer, fields: appendFields(l.fields, fields)}
}

func (l *BufferedLogger) log(ctx context.Context, level Level, msg string, fields ...interface{}) {
	if l == nil || l.buffer == nil {
		return
	}
	l.buffer.add(Entry{Ctx: ctx, Level: level, Msg: msg, Fields: appendFields(l.fields, fields)})
}

var _ ports.Logger = (*BufferedLogger)(nil)
