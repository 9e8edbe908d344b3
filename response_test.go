package httpsession

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestNewResponseDecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("hello gzip"))
	gz.Close()

	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Encoding": {"gzip"}},
		Body:       io.NopCloser(&buf),
	}

	resp, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeText, time.Now(), responseOptions{})
	if err != nil {
		t.Fatalf("newResponse: %v", err)
	}
	if resp.Text != "hello gzip" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
}

func TestNewResponseDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte("hello brotli"))
	bw.Close()

	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Encoding": {"br"}},
		Body:       io.NopCloser(&buf),
	}

	resp, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeText, time.Now(), responseOptions{})
	if err != nil {
		t.Fatalf("newResponse: %v", err)
	}
	if resp.Text != "hello brotli" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
}

func TestNewResponseUnsupportedEncodingErrors(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Encoding": {"compress"}},
		Body:       io.NopCloser(bytes.NewReader([]byte("x"))),
	}

	if _, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeText, time.Now(), responseOptions{}); err == nil {
		t.Fatalf("expected an error for an unsupported Content-Encoding")
	}
}

func TestNewResponseJSONPopulatesBoth(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"a":1}`))),
	}

	resp, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeJSON, time.Now(), responseOptions{})
	if err != nil {
		t.Fatalf("newResponse: %v", err)
	}
	if resp.Text != `{"a":1}` {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	m, ok := resp.JSON.(map[string]any)
	if !ok || m["a"].(float64) != 1 {
		t.Fatalf("unexpected JSON: %+v", resp.JSON)
	}
}

func TestNewResponseValidateStatusFails(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 500,
		Status:     "500 Internal Server Error",
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte("oops"))),
	}

	opts := responseOptions{validateStatus: func(status int) bool { return status < 400 }}
	if _, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeText, time.Now(), opts); err == nil {
		t.Fatalf("expected validateStatus to reject a 500")
	}
}

func TestNewResponseAssertNonEmptyFails(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}

	opts := responseOptions{assertNonEmptyResponse: true}
	if _, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeText, time.Now(), opts); err == nil {
		t.Fatalf("expected assertNonEmptyResponse to reject an empty body")
	}
}

func TestNewResponseValidateJSONFails(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"a":1}`))),
	}

	opts := responseOptions{validateJSON: func(data any) bool {
		m, ok := data.(map[string]any)
		return ok && m["a"] == float64(2)
	}}
	if _, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeJSON, time.Now(), opts); err == nil {
		t.Fatalf("expected validateJSON to reject a mismatched payload")
	}
}

func TestNewResponseStreamExposesReaderWithoutDraining(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte("streamed body"))),
	}

	resp, err := newResponse(httpResp, "https://example.com/", false, ResponseTypeStream, time.Now(), responseOptions{})
	if err != nil {
		t.Fatalf("newResponse: %v", err)
	}
	if resp.Stream == nil {
		t.Fatalf("expected a non-nil Stream for ResponseTypeStream")
	}
	if len(resp.Body) != 0 {
		t.Fatalf("expected Body to be left empty for a stream response, got %q", resp.Body)
	}

	buf, err := io.ReadAll(resp.Stream)
	if err != nil {
		t.Fatalf("reading Stream: %v", err)
	}
	if string(buf) != "streamed body" {
		t.Fatalf("unexpected stream contents: %q", buf)
	}
	if err := resp.Stream.Close(); err != nil {
		t.Fatalf("closing Stream: %v", err)
	}
}

func TestNewResponseCarriesRedirectAndCookieMetadata(t *testing.T) {
	httpResp := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte("ok"))),
	}

	opts := responseOptions{
		redirectURLs: []string{"https://example.com/a", "https://example.com/b"},
		cookies:      map[string]string{"session": "abc"},
		request:      &RequestSnapshot{Method: "GET", URL: "https://example.com/"},
	}

	resp, err := newResponse(httpResp, "https://example.com/b", true, ResponseTypeText, time.Now(), opts)
	if err != nil {
		t.Fatalf("newResponse: %v", err)
	}
	if resp.StatusMessage != "200 OK" {
		t.Fatalf("unexpected status message: %q", resp.StatusMessage)
	}
	if resp.RedirectCount != 2 || len(resp.RedirectURLs) != 2 {
		t.Fatalf("unexpected redirect metadata: %+v", resp)
	}
	if resp.Cookies["session"] != "abc" {
		t.Fatalf("expected cookie map to be carried through, got %+v", resp.Cookies)
	}
	if resp.Request == nil || resp.Request.Method != "GET" {
		t.Fatalf("expected the request snapshot to be carried through, got %+v", resp.Request)
	}
}
