package httpsession

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ------------------------------------------------------------------------

// Default wire-level headers sent with every request unless the caller's
// RequestDescriptor.Header already sets them, matching a recent desktop
// Firefox so fingerprinting middleboxes don't flag the traffic as a bot.
const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:100.0) Gecko/20100101 Firefox/100.0"
	defaultAcceptEncoding = "gzip, deflate, br"
	defaultAcceptLanguage = "en-GB,en;q=0.5"
	defaultAcceptJSON     = "application/json"
	defaultAcceptHTML     = "text/html, application/xhtml+xml, application/xml;q=0.9, */*;q=0.8"
)

// redirectStatusPreservesMethod holds the status codes for which the
// redirect loop keeps the original method and body (RFC 7231 6.4.7/6.4.8).
// Every other 3xx downgrades to a bodyless GET, matching how browsers treat
// a 301/302/303 response to a non-GET request.
var redirectStatusPreservesMethod = map[int]bool{
	http.StatusTemporaryRedirect: true, // 307
	http.StatusPermanentRedirect: true, // 308
}

// ------------------------------------------------------------------------

// Executor performs one RequestDescriptor's HTTP request against a
// Transport, following redirects, applying cookies, and computing Referer
// per request the way a browser configured for
// "strict-origin-when-cross-origin" would.
type Executor struct {
	Transport Transport
	Jar       *CookieJar
	Parser    URLParser
	Logger    Logger
}

// ------------------------------------------------------------------------

// NewExecutor returns an Executor with the package's defaults for any field
// left nil: a real net/http-backed Transport, a fresh CookieJar, the WHATWG
// URL parser, and a no-op Logger.
func NewExecutor(transport Transport, jar *CookieJar, parser URLParser, logger Logger) *Executor {
	if transport == nil {
		transport = NewDefaultTransport(defaultRequestTimeout)
	}
	if jar == nil {
		jar = NewCookieJar()
	}
	if parser == nil {
		parser = NewWHATWGParser()
	}
	if logger == nil {
		logger = NewNoopLogger()
	}

	return &Executor{Transport: transport, Jar: jar, Parser: parser, Logger: logger}
}

// ------------------------------------------------------------------------

// Do executes d, following redirects up to d.MaxRedirects times.
func (ex *Executor) Do(ctx context.Context, d *RequestDescriptor) (*Response, error) {
	const op = "executor.Do"

	started := time.Now()
	snapshot := d.snapshot()

	currentURL, err := ex.Parser.Parse(d.URL)
	if err != nil {
		return nil, decorate(op, KindValidation, d.URL, 0, err, snapshot)
	}

	jar := ex.Jar
	if d.Jar != nil {
		jar = d.Jar
	}

	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	bodyReader, contentType, _, err := d.body()
	if err != nil {
		return nil, decorate(op, KindValidation, d.URL, 0, err, snapshot)
	}

	// Buffered once so a 307/308 redirect (which must resend the same body)
	// can rewind it; the original reader is exhausted after the first send.
	var bodyBytes []byte
	var streamBody io.Reader
	if d.DataType == DataTypeStream {
		streamBody = bodyReader
	} else if bodyReader != nil {
		bodyBytes, err = io.ReadAll(bodyReader)
		if err != nil {
			return nil, decorate(op, KindValidation, d.URL, 0, err, snapshot)
		}
	}
	hasBody := bodyBytes != nil || streamBody != nil

	referrer := d.Referrer
	hostDomain := currentURL.Hostname()

	var redirectURLs []string
	redirectCount := 0
	var httpResp *http.Response
	var finalURL *url.URL
	redirected := false
	cookies := map[string]string{}

	for {
		if streamBody != nil && redirectCount > 0 {
			return nil, decorate(op, KindRedirect, currentURL.String(), 0,
				fmt.Errorf("cannot replay a stream body across a redirect"), snapshot)
		}

		var reqBody io.Reader
		switch {
		case streamBody != nil:
			reqBody = streamBody
		case hasBody:
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, currentURL.String(), reqBody)
		if err != nil {
			return nil, decorate(op, KindValidation, currentURL.String(), 0, err, snapshot)
		}

		ex.applyHeaders(req, d, contentType, referrer, currentURL, hostDomain, bodyBytes, jar)

		ex.Logger.LogEvent(LOG_DEBUG_LEVEL, &LoggerEvent{
			Type:      "request",
			RequestID: d.ID.String(),
			Values:    map[string]string{"method": method, "url": currentURL.String()},
		})

		resp, err := ex.Transport.Do(req)
		if err != nil {
			return nil, decorate(op, KindNetwork, currentURL.String(), 0, err, snapshot)
		}

		for _, parseErr := range jar.CollectCookiesFromResponse(currentURL, resp.Header) {
			ex.Logger.LogError(LOG_WARN_LEVEL, fmt.Errorf("executor: %w", parseErr))
		}
		for _, raw := range resp.Header.Values("Set-Cookie") {
			if c := parseCookie(currentURL, raw); !c.HasInvalidAttributes {
				cookies[c.Name] = c.Value
			}
		}

		// MaxRedirects zero disables following: the first 3xx is the result.
		if !isRedirect(resp.StatusCode) || d.MaxRedirects == 0 {
			httpResp = resp
			finalURL = currentURL
			break
		}

		if redirectCount >= d.MaxRedirects {
			resp.Body.Close()
			return nil, decorate(op, KindRedirect, currentURL.String(), resp.StatusCode, ErrTooManyRedirects, snapshot)
		}

		location := resp.Header.Get("Location")
		resp.Body.Close()
		if location == "" {
			return nil, decorate(op, KindRedirect, currentURL.String(), resp.StatusCode,
				fmt.Errorf("redirect with no Location header"), snapshot)
		}

		nextURL, err := ex.Parser.ParseRef(currentURL.String(), location)
		if err != nil {
			return nil, decorate(op, KindRedirect, currentURL.String(), resp.StatusCode,
				fmt.Errorf("redirected to invalid URL %q: %w", location, err), snapshot)
		}

		if d.Referrer == "" {
			referrer = computeReferrer(currentURL, nextURL)
		}

		hostDomain = currentURL.Hostname()
		if !redirectStatusPreservesMethod[resp.StatusCode] {
			method = http.MethodGet
			hasBody = false
			bodyBytes = nil
			streamBody = nil
			contentType = ""
		}

		redirectURLs = append(redirectURLs, nextURL.String())
		currentURL = nextURL
		redirectCount++
		redirected = true
	}

	opts := responseOptions{
		redirectURLs:           redirectURLs,
		cookies:                cookies,
		request:                snapshot,
		validateStatus:         d.ValidateStatus,
		assertNonEmptyResponse: d.AssertNonEmptyResponse,
		validateJSON:           d.ValidateJSON,
	}

	response, err := newResponse(httpResp, finalURL.String(), redirected, d.ResponseType, started, opts)
	if err != nil {
		return nil, decorate(op, KindDecode, finalURL.String(), httpResp.StatusCode, err, snapshot)
	}

	return response, nil
}

// ------------------------------------------------------------------------

// applyHeaders sets the caller-supplied headers, then fills in any wire
// default the caller did not already set, per §4.2's header construction
// rules: Origin/Host track the navigation's current URL, Accept varies by
// response type, and outgoing cookies are appended to any Cookie header the
// caller already set.
func (ex *Executor) applyHeaders(req *http.Request, d *RequestDescriptor, contentType, referrer string, currentURL *url.URL, hostDomain string, bodyBytes []byte, jar *CookieJar) {
	for k, values := range d.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", defaultAcceptEncoding)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", defaultAcceptLanguage)
	}
	if req.Header.Get("Accept") == "" {
		if d.ResponseType == ResponseTypeJSON {
			req.Header.Set("Accept", defaultAcceptJSON)
		} else {
			req.Header.Set("Accept", defaultAcceptHTML)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(bodyBytes) > 0 && req.Header.Get("Content-Length") == "" {
		req.ContentLength = int64(len(bodyBytes))
		req.Header.Set("Content-Length", strconv.Itoa(len(bodyBytes)))
	}
	if referrer != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", referrer)
	}
	if req.Header.Get("Origin") == "" {
		req.Header.Set("Origin", currentURL.Scheme+"://"+currentURL.Host)
	}
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", currentURL.Host)
	}
	if req.Host == "" {
		req.Host = currentURL.Host
	}

	var outgoing []string
	if existing := req.Header.Get("Cookie"); existing != "" {
		outgoing = append(outgoing, existing)
	}
	outgoing = append(outgoing, jar.GetRequestCookies(currentURL, hostDomain)...)
	outgoing = append(outgoing, d.Cookies...)
	if len(outgoing) > 0 {
		req.Header.Set("Cookie", joinCookies(outgoing))
	}
}

func joinCookies(cookies []string) string {
	out := cookies[0]
	for _, c := range cookies[1:] {
		out += "; " + c
	}
	return out
}

// ------------------------------------------------------------------------

// isRedirect reports whether status is any 3xx code. The redirect loop
// itself decides, per status, whether to preserve the method/body or
// downgrade to GET.
func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// ------------------------------------------------------------------------

// computeReferrer implements a strict-origin-when-cross-origin Referrer
// Policy: same origin gets the full URL (minus fragment/userinfo); a
// cross-origin but equally-or-more secure destination gets the origin
// only; a downgrade from https to a non-https destination gets no
// Referer at all.
func computeReferrer(from, to *url.URL) string {
	if from == nil {
		return ""
	}

	origin := func(u *url.URL) string { return u.Scheme + "://" + u.Host }

	if from.Scheme == "https" && to.Scheme != "https" {
		return ""
	}

	if origin(from) == origin(to) {
		stripped := *from
		stripped.User = nil
		stripped.Fragment = ""
		return stripped.String()
	}

	return origin(from) + "/"
}
