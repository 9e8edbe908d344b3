package httpsession

import (
	"net/url"

	whatwg "github.com/nlnwa/whatwg-url/url"
)

// ------------------------------------------------------------------------

// URLParser resolves a raw URL, and a raw URL against a base (e.g. a
// redirect Location header against the request that received it). The
// Executor is parser-agnostic so callers can substitute simpleParser in
// environments where WHATWG URL semantics would surprise them.
type URLParser interface {
	Parse(rawURL string) (*url.URL, error)
	ParseRef(baseURL string, ref string) (*url.URL, error)
}

type simpleParser struct{}

type whatwgParser struct {
	parser whatwg.Parser
}

// ------------------------------------------------------------------------

// NewSimpleParser returns a URLParser backed by net/url.
func NewSimpleParser() URLParser {
	return &simpleParser{}
}

// ------------------------------------------------------------------------

// NewWHATWGParser returns a URLParser backed by the WHATWG URL standard,
// used by default so relative redirect targets resolve the way a browser
// would.
func NewWHATWGParser() URLParser {
	return &whatwgParser{
		parser: whatwg.NewParser(whatwg.WithPercentEncodeSinglePercentSign()),
	}
}

// ------------------------------------------------------------------------

// Parse parses a raw url into a URL structure.
func (p *simpleParser) Parse(rawURL string) (*url.URL, error) {
	return url.Parse(rawURL)
}

// ParseRef parses a raw url with a reference into a URL structure.
func (p *simpleParser) ParseRef(baseURL string, ref string) (*url.URL, error) {
	u, err := p.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	return u.Parse(ref)
}

// ------------------------------------------------------------------------

// Parse parses a raw url into a URL structure.
func (p *whatwgParser) Parse(rawURL string) (*url.URL, error) {
	wurl, err := p.parser.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	return url.Parse(wurl.Href(false))
}

// ParseRef parses a raw url with a reference into a URL structure.
func (p *whatwgParser) ParseRef(baseURL string, ref string) (*url.URL, error) {
	wurl, err := p.parser.ParseRef(baseURL, ref)
	if err != nil {
		return nil, err
	}

	return url.Parse(wurl.Href(false))
}
