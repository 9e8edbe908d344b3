package httpsession

import (
	"net/url"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}

	return u
}

func TestParseCookieBasic(t *testing.T) {
	u := mustURL(t, "https://example.com/path")

	c := parseCookie(u, "session=abc123; Path=/; Secure; HttpOnly; SameSite=Lax")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}

	if c.Name != "session" || c.Value != "abc123" {
		t.Fatalf("unexpected name/value: %+v", c)
	}
	if !c.Secure || c.SameSite != SameSiteLax {
		t.Fatalf("unexpected attributes: %+v", c)
	}
	if c.Domain != "example.com" || c.AllowSubDomains {
		t.Fatalf("expected host-only cookie for example.com, got %+v", c)
	}
}

func TestParseCookieUnknownAttributeRejected(t *testing.T) {
	u := mustURL(t, "https://example.com/")

	c := parseCookie(u, "a=b; Partitioned")
	if err := validateCookie(u, c); err == nil {
		t.Fatalf("expected an error for an unrecognized attribute")
	}
}

func TestParseCookieMaxAgeTakesPrecedenceOverExpires(t *testing.T) {
	u := mustURL(t, "https://example.com/")
	now := time.Now()

	c := parseCookie(u, "a=b; Max-Age=60; Expires=Wed, 09 Jun 2021 10:18:14 GMT")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}
	if !c.Persistent {
		t.Fatalf("expected persistent cookie")
	}

	want := now.Add(60 * time.Second)
	if c.Expires.Sub(want) > time.Second || want.Sub(c.Expires) > time.Second {
		t.Fatalf("expected Expires derived from Max-Age, got %v want ~%v", c.Expires, want)
	}
}

func TestParseCookieMaxAgeZeroExpiresImmediately(t *testing.T) {
	u := mustURL(t, "https://example.com/")

	c := parseCookie(u, "a=b; Max-Age=0")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}
	if !c.expired(time.Now()) {
		t.Fatalf("expected Max-Age=0 cookie to be immediately expired, got %+v", c)
	}
}

func TestParseCookieHostPrefixRequiresSecureAndRootPath(t *testing.T) {
	u := mustURL(t, "https://example.com/")

	c := parseCookie(u, "__Host-id=1; Path=/")
	if err := validateCookie(u, c); err == nil {
		t.Fatalf("expected __Host- cookie without Secure to be rejected")
	}

	c = parseCookie(u, "__Host-id=1; Path=/; Secure")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}
	if c.Name != "__Host-id" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
}

func TestParseCookieSecurePrefixRequiresSecure(t *testing.T) {
	u := mustURL(t, "https://example.com/")

	c := parseCookie(u, "__Secure-id=1")
	if err := validateCookie(u, c); err == nil {
		t.Fatalf("expected __Secure- cookie without Secure to be rejected")
	}

	c = parseCookie(u, "__Secure-id=1; Secure")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}
}

func TestParseCookieSameSiteNoneRequiresSecure(t *testing.T) {
	u := mustURL(t, "https://example.com/")

	c := parseCookie(u, "a=b; SameSite=None")
	if err := validateCookie(u, c); err == nil {
		t.Fatalf("expected SameSite=None without Secure to be rejected")
	}

	c = parseCookie(u, "a=b; SameSite=None; Secure")
	if err := validateCookie(u, c); err != nil {
		t.Fatalf("validateCookie: %v", err)
	}
}

func TestCookieDomainMatchAndPathMatch(t *testing.T) {
	c := &Cookie{Domain: "example.com", Path: "/app", AllowSubDomains: true}

	if !cookieDomainMatches(c, "www.example.com") {
		t.Fatalf("expected subdomain to match when AllowSubDomains is set")
	}
	if cookieDomainMatches(c, "otherexample.com") {
		t.Fatalf("did not expect unrelated domain to match")
	}
	if !pathMatches("/app/sub", c.Path) {
		t.Fatalf("expected /app/sub to match /app")
	}
	if pathMatches("/appendix", c.Path) {
		t.Fatalf("did not expect /appendix to match /app")
	}
}

func TestCookieDomainMatchHostOnly(t *testing.T) {
	c := &Cookie{Domain: "example.com", Path: "/", AllowSubDomains: false}

	if cookieDomainMatches(c, "www.example.com") {
		t.Fatalf("did not expect a host-only cookie to match a subdomain")
	}
	if !cookieDomainMatches(c, "example.com") {
		t.Fatalf("expected exact host to match")
	}
}

func TestCookieIdentityIncludesScheme(t *testing.T) {
	plain := &Cookie{Name: "a", Domain: "example.com", Path: "/", IsHttps: false}
	secure := &Cookie{Name: "a", Domain: "example.com", Path: "/", IsHttps: true}

	if plain.id() == secure.id() {
		t.Fatalf("expected http/https cookies with the same name/domain/path to have distinct identities")
	}
}
