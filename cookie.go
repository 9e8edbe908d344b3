package httpsession

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ------------------------------------------------------------------------

// SameSite mirrors the Set-Cookie SameSite attribute.
type SameSite string

// SameSite values.
const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// Cookie is this package's in-memory representation of a stored cookie.
// Its identity for the purpose of jar replacement is the 4-tuple
// (Name, Domain, Path, IsHttps); two cookies differing only by scheme are
// distinct entries.
type Cookie struct {
	Name   string
	Value  string
	Domain string // the host the cookie applies to; leading "." already stripped.
	Path   string

	IsHttps         bool     // scheme of the site that set the cookie.
	AllowSubDomains bool     // true iff the Set-Cookie carried a Domain attribute.
	SameSite        SameSite // defaults to Lax when the attribute is absent.
	Secure          bool

	Expires    time.Time // meaningful only when Persistent is true.
	Persistent bool      // true once Max-Age or Expires was parsed successfully.

	// HasInvalidAttributes is set by the parser when it encountered an
	// attribute it could not make sense of; validateCookie rejects any
	// cookie with this set, regardless of what else is wrong with it.
	HasInvalidAttributes bool

	Creation   time.Time
	LastAccess time.Time
	seqNum     uint64
}

// ------------------------------------------------------------------------

// parseCookie parses one Set-Cookie header value received for hostURL. It
// is total: every input produces a Cookie, possibly with
// HasInvalidAttributes set, rather than failing outright. validateCookie is
// the pure predicate that decides whether the result may be stored.
func parseCookie(hostURL *url.URL, raw string) *Cookie {
	c := &Cookie{
		IsHttps:         hostURL.Scheme == "https",
		Domain:          hostURL.Hostname(),
		Path:            "/",
		AllowSubDomains: false,
		SameSite:        SameSiteLax,
	}

	var (
		nameSet    bool
		hasMaxAge  bool
		maxAge     int
		hasExpires bool
		expiresAt  time.Time
	)

	for _, tok := range strings.Split(raw, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		if strings.EqualFold(tok, "secure") {
			c.Secure = true
			continue
		}
		if strings.EqualFold(tok, "httponly") {
			// Stored cookies are not scoped by JS visibility here; the
			// attribute is recognized but otherwise discarded.
			continue
		}

		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			c.HasInvalidAttributes = true
			continue
		}

		key := strings.TrimSpace(tok[:eq])
		val := strings.TrimSpace(tok[eq+1:])

		switch strings.ToLower(key) {
		case "expires":
			t, err := parseCookieDate(val)
			if err != nil {
				c.HasInvalidAttributes = true
				continue
			}
			if hasMaxAge {
				// Max-Age already seen takes precedence regardless of order.
				continue
			}
			hasExpires = true
			expiresAt = t

		case "max-age":
			n, err := strconv.Atoi(val)
			if err != nil {
				c.HasInvalidAttributes = true
				continue
			}
			hasMaxAge = true
			maxAge = n

		case "domain":
			c.Domain = strings.TrimPrefix(val, ".")
			c.AllowSubDomains = true

		case "path":
			c.Path = val

		case "samesite":
			switch strings.ToLower(val) {
			case "strict":
				c.SameSite = SameSiteStrict
			case "lax":
				c.SameSite = SameSiteLax
			case "none":
				c.SameSite = SameSiteNone
			default:
				c.HasInvalidAttributes = true
			}

		default:
			if nameSet {
				// An attribute name this package doesn't recognize.
				c.HasInvalidAttributes = true
				continue
			}
			c.Name = stripMatchingQuotes(key)
			c.Value = stripMatchingQuotes(val)
			nameSet = true
		}
	}

	switch {
	case hasMaxAge:
		c.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
		c.Persistent = true
	case hasExpires:
		c.Expires = expiresAt
		c.Persistent = true
	}

	return c
}

// stripMatchingQuotes removes a leading and trailing '"' from s, but only
// when both are present.
func stripMatchingQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ------------------------------------------------------------------------

// disallowedCookieNameChars is the set of ASCII punctuation RFC 6265
// forbids in a cookie name, over and above the 33-126 printable range.
const disallowedCookieNameChars = " \t()<>@,;:\\\"/[]?={}"

func isValidCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < 33 || r > 126 {
			return false
		}
		if strings.ContainsRune(disallowedCookieNameChars, r) {
			return false
		}
	}
	return true
}

func isValidCookieValue(value string) bool {
	for _, r := range value {
		if r < 33 || r > 126 {
			return false
		}
		switch r {
		case ' ', '\t', '\n', '\r', '"', ',', ';', '\\':
			return false
		}
	}
	return true
}

// ------------------------------------------------------------------------

// validateCookie is the pure predicate deciding whether c, as parsed for
// hostURL, may be stored.
func validateCookie(hostURL *url.URL, c *Cookie) error {
	if c.HasInvalidAttributes {
		return fmt.Errorf("cookie: %q carries an invalid or unrecognized attribute", c.Name)
	}
	if !isValidCookieName(c.Name) {
		return fmt.Errorf("cookie: %q is not a valid cookie name", c.Name)
	}
	if !isValidCookieValue(c.Value) {
		return fmt.Errorf("cookie: %q has an invalid value", c.Name)
	}

	host := hostURL.Hostname()

	if strings.HasPrefix(c.Name, "__Secure-") && (!c.IsHttps || !c.Secure) {
		return fmt.Errorf("cookie: %q violates the __Secure- prefix rules", c.Name)
	}
	if strings.HasPrefix(c.Name, "__Host-") && !(c.IsHttps && c.Secure && !c.AllowSubDomains && c.Path == "/") {
		return fmt.Errorf("cookie: %q violates the __Host- prefix rules", c.Name)
	}
	if c.Domain != host && !(c.AllowSubDomains && matchDomain(host, c.Domain)) {
		return fmt.Errorf("cookie: domain %q is not valid for host %q", c.Domain, host)
	}
	if c.Secure && hostURL.Scheme != "https" && host != "localhost" {
		return fmt.Errorf("cookie: %q sets Secure over a non-https, non-localhost host", c.Name)
	}
	if c.SameSite == SameSiteNone && !c.Secure {
		return fmt.Errorf("cookie: %q sets SameSite=None without Secure", c.Name)
	}

	return nil
}

// ------------------------------------------------------------------------

// parseCookieDate accepts the date formats servers historically emit for
// Set-Cookie's Expires attribute.
func parseCookieDate(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC1123,
		time.RFC1123Z,
		time.RFC850,
		time.ANSIC,
		"Mon, 02-Jan-2006 15:04:05 MST",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported date format %q", s)
}

// ------------------------------------------------------------------------

// id returns the (name, domain, path, isHttps) identity tuple used for
// upsert replacement in the jar.
func (c *Cookie) id() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%t", c.Name, c.Domain, c.Path, c.IsHttps)
}

// expired reports whether the cookie has passed its Expires time as of now.
// A session cookie (Persistent false) never expires on its own.
func (c *Cookie) expired(now time.Time) bool {
	return c.Persistent && !c.Expires.After(now)
}

// ------------------------------------------------------------------------

// matchDomain reports whether candidate is exactly reference, or a
// subdomain of it (candidate ends with "."+reference).
func matchDomain(candidate, reference string) bool {
	return candidate == reference || hasDotSuffix(candidate, reference)
}

// hasDotSuffix reports whether s ends in "."+suffix.
func hasDotSuffix(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix)-1] == '.' && s[len(s)-len(suffix):] == suffix
}

// cookieDomainMatches reports whether c applies to host, honoring
// AllowSubDomains.
func cookieDomainMatches(c *Cookie, host string) bool {
	if c.Domain == host {
		return true
	}
	return c.AllowSubDomains && matchDomain(host, c.Domain)
}

// pathMatches implements RFC 6265 section 5.1.4's path-match algorithm:
// requestPath matches cookiePath if it is equal, or cookiePath is a
// path-segment prefix of it.
func pathMatches(requestPath, cookiePath string) bool {
	if requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	if cookiePath != "" && cookiePath[len(cookiePath)-1] == '/' {
		return true
	}
	return len(requestPath) > len(cookiePath) && requestPath[len(cookiePath)] == '/'
}
