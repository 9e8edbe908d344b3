// Package httpsession implements a stateful HTTP client: a cookie jar, a
// redirect-following request executor with content-decoding and secret
// redaction, and a session lifecycle that serializes login/logout and
// gates concurrent requests behind a leased Handle.
package httpsession
