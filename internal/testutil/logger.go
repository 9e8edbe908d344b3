package testutil

import (
	"sync"

	httpsession "github.com/p00dle/http-session-go"
)

// ------------------------------------------------------------------------

// Event is one call recorded by RecordingLogger.
type Event struct {
	Kind  string // "event" or "error"
	Event *httpsession.LoggerEvent
	Err   error
}

// RecordingLogger implements httpsession.Logger, keeping every call for
// later inspection instead of writing anywhere.
type RecordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) LogEvent(level httpsession.LogLevel, e *httpsession.LoggerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, Event{Kind: "event", Event: e})
}

func (l *RecordingLogger) LogError(level httpsession.LogLevel, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, Event{Kind: "error", Err: err})
}

func (l *RecordingLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)

	return out
}
