package httpsession

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ------------------------------------------------------------------------

const redactedPlaceholder = "[REDACTED]"

// redactSecrets removes every occurrence of each secret from body, including
// the encoded form the secret would take once the request body was
// assembled under the given DataType. This is what lets a Request
// Descriptor's Secrets list (e.g. a login password) be safely echoed back
// in a logged or returned request snapshot.
func redactSecrets(body string, dataType DataType, secrets []string) string {
	if body == "" || len(secrets) == 0 {
		return body
	}

	out := body
	for _, secret := range secrets {
		if secret == "" {
			continue
		}

		out = strings.ReplaceAll(out, secret, redactedPlaceholder)

		switch dataType {
		case DataTypeForm:
			out = strings.ReplaceAll(out, url.QueryEscape(secret), redactedPlaceholder)
		case DataTypeJSON:
			if encoded, err := json.Marshal(secret); err == nil {
				// Strip the surrounding quotes json.Marshal adds to a string.
				inner := strings.Trim(string(encoded), `"`)
				if inner != "" {
					out = strings.ReplaceAll(out, inner, redactedPlaceholder)
				}
			}
		}
	}

	return out
}

// ------------------------------------------------------------------------

// redactDataForDisplay returns a copy of data suitable for attaching to an
// error or log line: every entry is scrubbed of secrets the same way
// redactSecrets would scrub the formatted body, and binary/stream payloads
// are never scanned at all — they are rendered as a fixed placeholder
// since they are not scanned for occurrences of a textual secret.
func redactDataForDisplay(dataType DataType, data any, secrets []string) any {
	switch dataType {
	case DataTypeBinary:
		return "[BINARY]"
	case DataTypeStream:
		return "[STREAM]"

	case DataTypeForm:
		switch v := data.(type) {
		case map[string]string:
			out := make(map[string]string, len(v))
			for k, val := range v {
				out[k] = redactSecrets(val, DataTypeRaw, secrets)
			}
			return out
		case map[string][]string:
			out := make(map[string][]string, len(v))
			for k, vals := range v {
				rs := make([]string, len(vals))
				for i, val := range vals {
					rs[i] = redactSecrets(val, DataTypeRaw, secrets)
				}
				out[k] = rs
			}
			return out
		default:
			return data
		}

	case DataTypeJSON:
		buf, err := json.Marshal(data)
		if err != nil {
			return data
		}
		var out any
		if err := json.Unmarshal([]byte(redactSecrets(string(buf), DataTypeJSON, secrets)), &out); err != nil {
			return data
		}
		return out

	case DataTypeRaw:
		switch v := data.(type) {
		case string:
			return redactSecrets(v, DataTypeRaw, secrets)
		case []byte:
			return redactSecrets(string(v), DataTypeRaw, secrets)
		default:
			return data
		}

	default:
		return data
	}
}

// ------------------------------------------------------------------------

// redactURL replaces the userinfo (user:password@) of rawURL with
// [REDACTED] placeholders before it is attached to an *Error or logged, and
// leaves everything else untouched.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}

	userinfo := redactedPlaceholder
	if _, hasPassword := u.User.Password(); hasPassword {
		userinfo += ":" + redactedPlaceholder
	}
	u.User = nil

	// Spliced in after String, which would percent-encode the brackets.
	return strings.Replace(u.String(), "//", "//"+userinfo+"@", 1)
}
