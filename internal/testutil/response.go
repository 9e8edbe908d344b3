package testutil

import (
	"io"
	"net/http"
	"strings"
)

// ------------------------------------------------------------------------

// TextResponse builds a minimal *http.Response carrying body as its
// uncompressed text content.
func TextResponse(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// RedirectResponse builds a 3xx response pointing at location.
func RedirectResponse(status int, location string) *http.Response {
	header := http.Header{}
	header.Set("Location", location)

	return TextResponse(status, header, "")
}
