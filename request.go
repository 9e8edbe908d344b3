package httpsession

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ------------------------------------------------------------------------

// DataType tells the Executor how to serialize RequestDescriptor.Data into
// a request body, and tells the secret redactor which encoding to account
// for when scrubbing a logged copy of that body.
type DataType string

// DataType values.
const (
	DataTypeNone   DataType = ""       // no body.
	DataTypeRaw    DataType = "raw"    // Data is a string, []byte, or anything string-coercible; sent verbatim, no implied Content-Type.
	DataTypeJSON   DataType = "json"   // application/json, Data is marshaled as-is.
	DataTypeForm   DataType = "form"   // application/x-www-form-urlencoded, Data is map[string]string or map[string][]string.
	DataTypeBinary DataType = "binary" // application/octet-stream, Data must be []byte.
	DataTypeStream DataType = "stream" // Data must be io.Reader, piped through without buffering.
)

// ResponseType tells the Executor how to materialize a response body.
type ResponseType string

// ResponseType values.
const (
	ResponseTypeNone   ResponseType = "none"   // body is drained into Response.Body only; Text and JSON stay empty.
	ResponseTypeText   ResponseType = "text"   // body is decoded as a string.
	ResponseTypeJSON   ResponseType = "json"   // body is decoded as a string and also unmarshaled into Response.JSON.
	ResponseTypeBuffer ResponseType = "buffer" // body is kept as raw bytes.
	ResponseTypeStream ResponseType = "stream" // the (possibly decoded) byte stream is exposed directly, not drained.
)

// ------------------------------------------------------------------------

// RequestDescriptor is the immutable description of one HTTP request,
// independent of any particular transport or session. The default zero
// value targets a GET request with no body.
type RequestDescriptor struct {
	ID     uuid.UUID
	Method string
	URL    string
	Header http.Header

	Data     any
	DataType DataType

	ResponseType ResponseType

	// Jar, if set, overrides the Executor's own cookie jar for this one
	// request.
	Jar *CookieJar

	// Cookies lists additional "name=value" pairs to send verbatim,
	// concatenated onto whatever the jar contributes (and any Cookie
	// header the caller already set in Header).
	Cookies []string

	// Secrets lists literal values (e.g. a login password) that must never
	// appear in a logged or returned snapshot of this request, in any
	// encoding the DataType might have produced.
	Secrets []string

	// ValidateStatus, if set, fails the request with KindHTTP unless it
	// returns true for the final status code.
	ValidateStatus func(status int) bool

	// AssertNonEmptyResponse fails the request with KindValidation if the
	// materialized (non-stream) body is empty.
	AssertNonEmptyResponse bool

	// ValidateJSON, if set and ResponseType is json, fails the request with
	// KindValidation when it returns false for the decoded JSON.
	ValidateJSON func(data any) bool

	// MaxRedirects caps how many redirects Executor.Do will follow before
	// failing with ErrTooManyRedirects. Zero disables redirect following
	// entirely (the first 3xx is returned as-is).
	MaxRedirects int

	// Referrer, if non-empty, is sent verbatim instead of the Referer this
	// package would otherwise compute from the previous URL in the chain.
	Referrer string

	Timeout time.Duration
}

// ------------------------------------------------------------------------

// NewRequest returns a RequestDescriptor for method/rawURL with a freshly
// generated ref token and the package's default redirect and timeout
// limits.
func NewRequest(method, rawURL string) *RequestDescriptor {
	return &RequestDescriptor{
		ID:           uuid.New(),
		Method:       method,
		URL:          rawURL,
		Header:       http.Header{},
		ResponseType: ResponseTypeText,
		MaxRedirects: defaultMaxRedirects,
		Timeout:      defaultRequestTimeout,
	}
}

const (
	defaultMaxRedirects   = 5
	defaultRequestTimeout = 30 * time.Second
)

// ------------------------------------------------------------------------

// body serializes Data according to DataType, returning the ready-to-send
// reader, the Content-Type it implies (empty if DataType does not imply
// one), and the formatted body for logging/redaction. Binary and stream
// bodies are never rendered as their actual content — they are reported as
// a fixed placeholder, since they are never scanned for secrets either.
func (d *RequestDescriptor) body() (reader io.Reader, contentType string, formatted string, err error) {
	switch d.DataType {
	case DataTypeNone:
		return nil, "", "", nil

	case DataTypeRaw:
		var s string
		switch v := d.Data.(type) {
		case nil:
			s = ""
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			s = fmt.Sprint(v)
		}
		return strings.NewReader(s), "", s, nil

	case DataTypeJSON:
		if d.Data == nil {
			return strings.NewReader(""), "application/json", "", nil
		}
		buf, err := json.Marshal(d.Data)
		if err != nil {
			return nil, "", "", fmt.Errorf("request: encoding JSON body: %w", err)
		}
		return bytes.NewReader(buf), "application/json", string(buf), nil

	case DataTypeForm:
		values, err := formValues(d.Data)
		if err != nil {
			return nil, "", "", err
		}
		formReader := newFormBody(values)
		buf, _ := io.ReadAll(formReader)
		return bytes.NewReader(buf), "application/x-www-form-urlencoded", string(buf), nil

	case DataTypeBinary:
		buf, ok := d.Data.([]byte)
		if !ok {
			return nil, "", "", fmt.Errorf("request: DataTypeBinary requires []byte, got %T", d.Data)
		}
		return bytes.NewReader(buf), "application/octet-stream", "[BINARY]", nil

	case DataTypeStream:
		r, ok := d.Data.(io.Reader)
		if !ok {
			return nil, "", "", fmt.Errorf("request: DataTypeStream requires io.Reader, got %T", d.Data)
		}
		return r, "", "[STREAM]", nil

	default:
		return nil, "", "", fmt.Errorf("request: invalid data type %q", d.DataType)
	}
}

// formValues normalizes DataTypeForm's Data, which may be either a flat
// map[string]string or a map[string][]string for repeated keys.
func formValues(data any) (url.Values, error) {
	values := url.Values{}

	switch v := data.(type) {
	case map[string]string:
		for k, val := range v {
			values.Set(k, val)
		}
	case map[string][]string:
		for k, vals := range v {
			for _, val := range vals {
				values.Add(k, val)
			}
		}
	default:
		return nil, fmt.Errorf("request: DataTypeForm requires map[string]string or map[string][]string, got %T", data)
	}

	return values, nil
}

// ------------------------------------------------------------------------

// redactedBody returns the formatted body with every Secrets entry
// scrubbed, safe to attach to a log line or an *Error.
func (d *RequestDescriptor) redactedBody() (string, error) {
	_, _, formatted, err := d.body()
	if err != nil {
		return "", err
	}

	return redactSecrets(formatted, d.DataType, d.Secrets), nil
}

// ------------------------------------------------------------------------

// snapshot builds a secret-redacted view of d suitable for attaching to a
// Response or an *Error: the request echo described in §3/§4.2.
func (d *RequestDescriptor) snapshot() *RequestSnapshot {
	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	formatted, err := d.redactedBody()
	if err != nil {
		formatted = ""
	}

	return &RequestSnapshot{
		Method:        method,
		URL:           redactURL(d.URL),
		Timeout:       d.Timeout,
		DataType:      d.DataType,
		Data:          redactDataForDisplay(d.DataType, d.Data, d.Secrets),
		FormattedData: formatted,
		Header:        d.Header.Clone(),
		Cookies:       append([]string(nil), d.Cookies...),
	}
}
