package httpsession

import (
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// ------------------------------------------------------------------------

// Logger receives structured events from the Session and the Executor.
// Shipping a production logging backend is out of scope for this package;
// Logger exists so callers can plug in whatever they already use.
type Logger interface {
	LogEvent(level LogLevel, e *LoggerEvent) // LogEvent logs a named event with key/value detail.
	LogError(level LogLevel, err error)       // LogError logs a bare error.
}

// LogLevel is a logging priority. Higher levels are more important.
type LogLevel uint8

// Logging levels.
const (
	LOG_DEBUG_LEVEL LogLevel = iota
	LOG_INFO_LEVEL
	LOG_WARN_LEVEL
	LOG_ERR_LEVEL
	LOG_FATAL_LEVEL
)

// LoggerEvent represents one lifecycle or request event raised by a Session
// or an Executor invocation.
type LoggerEvent struct {
	Type      string            // Type names the event, e.g. "login", "request", "lockout".
	SessionID string            // SessionID identifies the session that raised the event.
	RequestID string            // RequestID is the ref token of the request, if any.
	Values    map[string]string // Values carries event-specific key/value detail.
}

var logLevelNames = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// ------------------------------------------------------------------------

// stdLogger is a minimal Logger backed by the standard library's log.Logger.
type stdLogger struct {
	l       *log.Logger
	counter int32
	start   time.Time
}

// NewStdLogger returns a Logger that writes human-readable lines to dest.
// If dest is nil, it writes to os.Stderr.
func NewStdLogger(dest io.Writer, prefix string, flag int) Logger {
	if dest == nil {
		dest = os.Stderr
	}

	return &stdLogger{
		l:     log.New(dest, prefix, flag),
		start: time.Now(),
	}
}

const maxLoggedValueLen = 512

// LogEvent logs a logger event. Values are truncated so a large response
// body or cookie header attached for debugging doesn't flood the log.
func (l *stdLogger) LogEvent(level LogLevel, e *LoggerEvent) {
	i := atomic.AddInt32(&l.counter, 1)

	values := make(map[string]string, len(e.Values))
	for k, v := range e.Values {
		values[k] = truncate(v, maxLoggedValueLen)
	}

	l.l.Printf("%s: [%06d] %s [%s/%s] %v (%s)", logLevelNames[level], i, e.Type, e.SessionID, e.RequestID, values, time.Since(l.start))
}

// LogError logs an error.
func (l *stdLogger) LogError(level LogLevel, err error) {
	i := atomic.AddInt32(&l.counter, 1)
	l.l.Printf("%s: [%06d] %v (%s)", logLevelNames[level], i, err, time.Since(l.start))
}

// ------------------------------------------------------------------------

// noopLogger discards everything. It is the default Logger for a Session or
// Executor that was not given one explicitly.
type noopLogger struct{}

// NewNoopLogger returns a Logger that discards all events.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) LogEvent(LogLevel, *LoggerEvent) {}
func (noopLogger) LogError(LogLevel, error)        {}
