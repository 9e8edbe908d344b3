// Package testutil provides an in-memory Transport and a recording Logger
// for this module's own tests, in place of a real network or log sink.
package testutil

import (
	"fmt"
	"net/http"
	"sync"
)

// ------------------------------------------------------------------------

// Handler builds the *http.Response for one request made to MockTransport.
type Handler func(req *http.Request) (*http.Response, error)

// MockTransport dispatches requests to registered handlers by method+path,
// recording every request it sees for assertions.
type MockTransport struct {
	mu       sync.Mutex
	handlers map[string]Handler
	requests []*http.Request
}

// NewMockTransport returns an empty MockTransport; register routes with
// Handle before using it.
func NewMockTransport() *MockTransport {
	return &MockTransport{handlers: map[string]Handler{}}
}

// Handle registers handler for method+path (e.g. "GET /login").
func (m *MockTransport) Handle(method, path string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[method+" "+path] = handler
}

// Do implements httpsession.Transport.
func (m *MockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler, ok := m.handlers[req.Method+" "+req.URL.Path]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("testutil: no handler registered for %s %s", req.Method, req.URL.Path)
	}

	return handler(req)
}

// Requests returns every request the transport has seen so far, in order.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)

	return out
}
