package gauge

import (
	"fmt"
	"io"
	"time"
)

// Tag classifies engine log lines for the host's log sink.
type Tag string

const (
	TagBin    Tag = "BIN"
	TagRaw    Tag = "RAW"
	TagParsed Tag = "PARSED"
	TagInfo   Tag = "INFO"
	TagWarn   Tag = "WARN"
	TagError  Tag = "ERROR"
	TagStatus Tag = "STATUS"
)

// Logger receives tagged, human-readable log lines from the engine.
// Implementations must not be assumed panic-safe by the engine; a callback
// failure is the caller's own problem.
type Logger interface {
	Logf(tag Tag, format string, args ...interface{})
}

// ValueSink receives one event per accepted measurement.
type ValueSink interface {
	Push(value float64, unit Unit)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(tag Tag, format string, args ...interface{})

func (f LoggerFunc) Logf(tag Tag, format string, args ...interface{}) { f(tag, format, args...) }

// ValueSinkFunc adapts a function to the ValueSink interface.
type ValueSinkFunc func(value float64, unit Unit)

func (f ValueSinkFunc) Push(value float64, unit Unit) { f(value, unit) }

// NopLogger discards all log lines.
type NopLogger struct{}

func (NopLogger) Logf(Tag, string, ...interface{}) {}

// NopSink discards all value events.
type NopSink struct{}

func (NopSink) Push(float64, Unit) {}

// ConsoleLogger writes "[HH:MM:SS] [TAG] message" lines to W.
type ConsoleLogger struct {
	W io.Writer
}

func (l ConsoleLogger) Logf(tag Tag, format string, args ...interface{}) {
	fmt.Fprintf(l.W, "[%s] [%s] %s\n", time.Now().Format("15:04:05"), tag, fmt.Sprintf(format, args...))
}
