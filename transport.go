package httpsession

import (
	"net/http"
	"time"
)

// ------------------------------------------------------------------------

// Transport performs one HTTP round trip. It is the seam the Executor's
// tests (and any caller wanting a mock backend) substitute instead of
// talking to a real network.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// ------------------------------------------------------------------------

// httpTransport adapts *http.Client to Transport. CheckRedirect always
// declines to follow, so every 3xx response is handed back to the Executor
// for it to apply its own redirect-following rules (method/body handling
// for 307/308, Referer recomputation, max-redirects accounting).
type httpTransport struct {
	client *http.Client
}

// NewDefaultTransport returns a Transport backed by net/http with the given
// per-request timeout and no automatic redirect following.
func NewDefaultTransport(timeout time.Duration) Transport {
	return &httpTransport{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (t *httpTransport) Do(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}
