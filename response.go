package httpsession

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// ------------------------------------------------------------------------

// RequestSnapshot is a secret-redacted echo of the request that produced a
// Response or an *Error, per §3's "echoed sanitized request view".
type RequestSnapshot struct {
	Method        string
	URL           string
	Timeout       time.Duration
	DataType      DataType
	Data          any    // the original Data, with any Secrets entries scrubbed.
	FormattedData string // the wire-formatted body, likewise scrubbed.
	Header        http.Header
	Cookies       []string
}

// ------------------------------------------------------------------------

// Response is the materialized result of one executed HTTP request,
// independent of the transport that produced it.
type Response struct {
	StatusCode    int
	StatusMessage string
	Header        http.Header
	URL           string   // the final URL, after any redirects were followed.
	Redirected    bool     // true if at least one redirect was followed to get here.
	RedirectURLs  []string // one entry per 3xx hop, in the order they were followed.
	RedirectCount int

	// Cookies is the flat name->value map of cookies set by the Set-Cookie
	// headers of every response in the redirect chain, a later hop's value
	// replacing an earlier one of the same name. A Set-Cookie value the
	// parser flagged with invalid attributes is left out.
	Cookies map[string]string

	// Request echoes, in sanitized form, the request that produced this
	// Response.
	Request *RequestSnapshot

	Body []byte // always populated, decompressed, size-limited (empty when ResponseType is stream).
	Text string // populated when ResponseType is text or json.
	JSON any    // populated when ResponseType is json and decoding succeeds.

	// Stream exposes the decompressed body as a live reader when
	// ResponseType is stream; the caller is responsible for draining and
	// closing it.
	Stream io.ReadCloser

	Duration time.Duration
}

// ------------------------------------------------------------------------

// maxResponseBodyBytes caps how much of a response body this package will
// buffer in memory. It is generous because the package targets API/session
// traffic, not bulk downloads.
const maxResponseBodyBytes = 64 * 1024 * 1024

// responseOptions carries the executor's per-request post-processing
// configuration into newResponse, kept separate from RequestDescriptor
// since not every caller of newResponse (e.g. tests) needs a full
// descriptor.
type responseOptions struct {
	redirectURLs           []string
	cookies                map[string]string
	request                *RequestSnapshot
	validateStatus         func(status int) bool
	assertNonEmptyResponse bool
	validateJSON           func(data any) bool
}

// ------------------------------------------------------------------------

// newResponse drains and decompresses httpResp's body per its
// Content-Encoding, then materializes it according to responseType and
// runs the post-processing checks described in §4.2: validateStatus,
// assertNonEmptyResponse, and (for JSON) validateJson.
func newResponse(httpResp *http.Response, finalURL string, redirected bool, responseType ResponseType, started time.Time, opts responseOptions) (*Response, error) {
	rdr, closer, err := decodeContentEncoding(httpResp.Body, httpResp.Header.Get("Content-Encoding"))
	if err != nil {
		httpResp.Body.Close()
		return nil, fmt.Errorf("response: %w", err)
	}

	resp := &Response{
		StatusCode:    httpResp.StatusCode,
		StatusMessage: httpResp.Status,
		Header:        httpResp.Header,
		URL:           finalURL,
		Redirected:    redirected,
		RedirectURLs:  opts.redirectURLs,
		RedirectCount: len(opts.redirectURLs),
		Cookies:       opts.cookies,
		Request:       opts.request,
		Duration:      time.Since(started),
	}

	if responseType == ResponseTypeStream {
		resp.Stream = &decodedBody{reader: rdr, underlying: httpResp.Body, closer: closer}
		return resp, validateResponseStatus(resp, opts)
	}

	if closer != nil {
		defer closer()
	}
	defer httpResp.Body.Close()

	limited := io.LimitReader(rdr, maxResponseBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("response: reading body: %w", err)
	}
	if len(body) > maxResponseBodyBytes {
		return nil, fmt.Errorf("response: body exceeds %d bytes", maxResponseBodyBytes)
	}
	resp.Body = body

	switch responseType {
	case ResponseTypeNone, ResponseTypeBuffer:
		// Body already holds the raw bytes.
	case ResponseTypeText:
		resp.Text = string(body)
	case ResponseTypeJSON:
		resp.Text = string(body)
		if len(body) > 0 {
			if err := json.Unmarshal(body, &resp.JSON); err != nil {
				return nil, fmt.Errorf("response: unable to parse response data as JSON: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("response: unsupported ResponseType %q", responseType)
	}

	if err := validateResponseStatus(resp, opts); err != nil {
		return nil, err
	}
	if opts.assertNonEmptyResponse && len(body) == 0 {
		return nil, fmt.Errorf("response: empty response")
	}
	if responseType == ResponseTypeJSON && opts.validateJSON != nil && !opts.validateJSON(resp.JSON) {
		return nil, fmt.Errorf("response: invalid response JSON")
	}

	return resp, nil
}

func validateResponseStatus(resp *Response, opts responseOptions) error {
	if opts.validateStatus != nil && !opts.validateStatus(resp.StatusCode) {
		return fmt.Errorf("response: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// decodedBody adapts a (possibly decompressing) reader plus the
// underlying http.Response.Body to a single io.ReadCloser, so a stream
// ResponseType caller closes exactly one thing.
type decodedBody struct {
	reader     io.Reader
	underlying io.Closer
	closer     func() error
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.reader.Read(p) }

func (b *decodedBody) Close() error {
	if b.closer != nil {
		b.closer()
	}
	return b.underlying.Close()
}

// ------------------------------------------------------------------------

// decodeContentEncoding wraps body in a decompressing reader for the given
// Content-Encoding value. gzip and deflate are handled by
// klauspost/compress (a drop-in, faster replacement for the standard
// library's own packages); br is handled by andybalholm/brotli, which the
// standard library has no equivalent for at all. An unrecognized encoding
// is an error rather than being silently passed through, since returning
// compressed bytes as if they were the materialized body would be a worse
// failure mode than failing loudly.
func decodeContentEncoding(body io.Reader, contentEncoding string) (io.Reader, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil, nil

	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, gz.Close, nil

	case "deflate":
		fl := flate.NewReader(body)
		return fl, fl.Close, nil

	case "br":
		return brotli.NewReader(body), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported Content-Encoding %q", contentEncoding)
	}
}
