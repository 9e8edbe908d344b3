package httpsession

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ------------------------------------------------------------------------

// CookieFilter selects cookies for RemoveCookies/GetCookie. A nil field is
// a wildcard; a non-nil field must match exactly.
type CookieFilter struct {
	Name   *string
	Domain *string
	Path   *string
}

func (f CookieFilter) matches(c *Cookie) bool {
	if f.Name != nil && c.Name != *f.Name {
		return false
	}
	if f.Domain != nil && c.Domain != *f.Domain {
		return false
	}
	if f.Path != nil && c.Path != *f.Path {
		return false
	}
	return true
}

// ------------------------------------------------------------------------

// CookieJar is an ordered collection of Cookies, per §4.1 and §6 of this
// package's specification: it parses and validates Set-Cookie headers,
// stores cookies keyed by the (name, domain, path, isHttps) identity
// tuple, expires them lazily, and selects the subset that applies to an
// outgoing request. Persisting a jar to disk is out of scope; a jar lives
// exactly as long as the Session or Executor that owns it.
type CookieJar struct {
	mu         sync.Mutex
	cookies    []*Cookie
	nextSeqNum uint64
}

// NewCookieJar returns a CookieJar seeded with the given cookies, if any.
func NewCookieJar(seed ...*Cookie) *CookieJar {
	j := &CookieJar{}
	if len(seed) > 0 {
		now := time.Now()
		for _, c := range seed {
			j.addCookieLocked(c, now)
		}
	}
	return j
}

// ------------------------------------------------------------------------

// CollectCookiesFromResponse reads every Set-Cookie header value on header
// (matched case-insensitively, per net/http.Header's own lookup), parses
// each against requestURL, and adds those that pass validateCookie. A
// header that fails validation is skipped and its error reported; it does
// not abort processing of the remaining headers.
func (j *CookieJar) CollectCookiesFromResponse(requestURL *url.URL, header http.Header) []error {
	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return nil
	}

	now := time.Now()
	var errs []error

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, raw := range values {
		c := parseCookie(requestURL, raw)
		if err := validateCookie(requestURL, c); err != nil {
			errs = append(errs, err)
			continue
		}
		j.addCookieLocked(c, now)
	}

	return errs
}

// ------------------------------------------------------------------------

// AddCookie stores c, replacing any existing cookie with the same identity
// tuple (name, domain, path, isHttps) in place.
func (j *CookieJar) AddCookie(c *Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.addCookieLocked(c, time.Now())
}

// AddCookies bulk-adds cs, in order.
func (j *CookieJar) AddCookies(cs []*Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	for _, c := range cs {
		j.addCookieLocked(c, now)
	}
}

func (j *CookieJar) addCookieLocked(c *Cookie, now time.Time) {
	id := c.id()
	for i, existing := range j.cookies {
		if existing.id() == id {
			c.Creation = existing.Creation
			c.seqNum = existing.seqNum
			c.LastAccess = now
			j.cookies[i] = c
			return
		}
	}

	c.Creation = now
	c.LastAccess = now
	c.seqNum = j.nextSeqNum
	j.nextSeqNum++
	j.cookies = append(j.cookies, c)
}

// ------------------------------------------------------------------------

// RemoveCookies deletes every stored cookie matching filter (an all-nil
// filter removes everything), and reports how many were removed.
func (j *CookieJar) RemoveCookies(filter CookieFilter) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	kept := j.cookies[:0:0]
	removed := 0
	for _, c := range j.cookies {
		if filter.matches(c) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	j.cookies = kept

	return removed
}

// GetCookie returns the first stored cookie matching name and the optional
// domain/path filters, or nil if none matches.
func (j *CookieJar) GetCookie(name string, domain, path *string) *Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	filter := CookieFilter{Name: &name, Domain: domain, Path: path}
	for _, c := range j.cookies {
		if filter.matches(c) {
			cp := *c
			return &cp
		}
	}

	return nil
}

// ------------------------------------------------------------------------

// selectCookieFactory returns a predicate over stored cookies applicable
// to requestURL, given hostDomain — the host the navigation originated
// from (the previous hop's host on a redirect, or requestURL's own host
// for a first request). Strict cookies require both hostDomain and the
// request's own host to match; Lax (the default) requires only the
// request's own host; None requires only hostDomain, letting the cookie
// ride along a cross-site navigation that set it up.
func selectCookieFactory(requestURL *url.URL, hostDomain string) func(*Cookie) bool {
	isSecure := requestURL.Scheme == "https"
	reqHost := requestURL.Hostname()
	reqPath := requestURL.Path
	if reqPath == "" {
		reqPath = "/"
	}

	return func(c *Cookie) bool {
		if !pathMatches(reqPath, c.Path) {
			return false
		}
		if c.Secure && !isSecure {
			return false
		}

		switch c.SameSite {
		case SameSiteNone:
			return cookieDomainMatches(c, hostDomain)
		case SameSiteStrict:
			return cookieDomainMatches(c, hostDomain) && cookieDomainMatches(c, reqHost)
		default: // Lax
			return cookieDomainMatches(c, reqHost)
		}
	}
}

// ------------------------------------------------------------------------

// GetRequestCookies first purges every cookie whose Expires has passed,
// then returns the selected subset serialized as "name=value" strings, in
// storage order.
func (j *CookieJar) GetRequestCookies(requestURL *url.URL, hostDomain string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked(time.Now())

	accept := selectCookieFactory(requestURL, hostDomain)
	var out []string
	for _, c := range j.cookies {
		if accept(c) {
			out = append(out, c.Name+"="+c.Value)
		}
	}

	return out
}

func (j *CookieJar) expireLocked(now time.Time) {
	kept := j.cookies[:0:0]
	for _, c := range j.cookies {
		if !c.expired(now) {
			kept = append(kept, c)
		}
	}
	j.cookies = kept
}

// ------------------------------------------------------------------------

// ToJSON returns a snapshot of every non-expired stored cookie, safe to
// persist and restore via NewCookieJar.
func (j *CookieJar) ToJSON() []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.expireLocked(time.Now())

	out := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, *c)
	}

	return out
}

// Clear removes every cookie from the jar.
func (j *CookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = nil
}
