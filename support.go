package httpsession

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ------------------------------------------------------------------------

// StrToUInt converts a string to an unsigned integer, used by ProcessEnv
// config setters.
func StrToUInt(str string) (uint, error) {
	i, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("StrToUInt: %w", err)
	}
	if i < 0 {
		return 0, fmt.Errorf("StrToUInt: parsing %q: value must be positive or zero", str)
	}

	return uint(i), nil
}

// ------------------------------------------------------------------------

// StrToBool converts a string to a boolean, accepting the same vocabulary as
// the teacher's environment setters (1/0, yes/no, true/false, y/n).
func StrToBool(str string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(str)) {
	case "1", "yes", "true", "y":
		return true, nil
	case "0", "no", "false", "n":
		return false, nil
	default:
		return false, fmt.Errorf("StrToBool: unable to convert %q to boolean", str)
	}
}

// ------------------------------------------------------------------------

// InSlice reports whether haystack contains needle.
func InSlice[E comparable](needle E, haystack []E) bool {
	for _, e := range haystack {
		if needle == e {
			return true
		}
	}

	return false
}

// ------------------------------------------------------------------------

// truncate shortens s to at most n runes, appending an ellipsis marker. Used
// when logging response bodies so a large payload doesn't flood the log.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "...(truncated)"
}

// ------------------------------------------------------------------------

// newFormBody encodes values as an application/x-www-form-urlencoded body.
func newFormBody(values url.Values) io.Reader {
	return strings.NewReader(values.Encode())
}

// ------------------------------------------------------------------------

// mergeHeaders combines multiple http.Header values, later ones overriding
// earlier ones for any repeated key.
func mergeHeaders(headers ...http.Header) http.Header {
	out := http.Header{}
	for _, hdr := range headers {
		for k, values := range hdr {
			out.Del(k)
			for _, v := range values {
				out.Add(k, v)
			}
		}
	}

	return out
}
