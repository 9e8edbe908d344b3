package httpsession

import (
	"io"
	"strings"
	"testing"
)

func TestRequestBodyForm(t *testing.T) {
	d := NewRequest("POST", "https://example.com/login")
	d.DataType = DataTypeForm
	d.Data = map[string]string{"user": "alice"}

	reader, contentType, formatted, err := d.body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	if formatted != "user=alice" {
		t.Fatalf("unexpected formatted body: %q", formatted)
	}

	buf, _ := io.ReadAll(reader)
	if string(buf) != "user=alice" {
		t.Fatalf("unexpected reader contents: %q", buf)
	}
}

func TestRequestBodyJSON(t *testing.T) {
	d := NewRequest("POST", "https://example.com/api")
	d.DataType = DataTypeJSON
	d.Data = map[string]int{"x": 1}

	_, contentType, formatted, err := d.body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	if formatted != `{"x":1}` {
		t.Fatalf("unexpected formatted body: %q", formatted)
	}
}

func TestRequestBodyBinary(t *testing.T) {
	d := NewRequest("POST", "https://example.com/upload")
	d.DataType = DataTypeBinary
	d.Data = []byte{0x00, 0x01, 0xff}

	reader, contentType, formatted, err := d.body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if contentType != "application/octet-stream" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	if formatted != "[BINARY]" {
		t.Fatalf("expected formatted body to be a placeholder, got %q", formatted)
	}

	buf, _ := io.ReadAll(reader)
	if len(buf) != 3 {
		t.Fatalf("expected the raw bytes to reach the reader unmodified, got %v", buf)
	}
}

func TestRequestBodyBinaryRejectsWrongShape(t *testing.T) {
	d := NewRequest("POST", "https://example.com/upload")
	d.DataType = DataTypeBinary
	d.Data = "not-bytes"

	if _, _, _, err := d.body(); err == nil {
		t.Fatalf("expected an error for non-[]byte DataTypeBinary data")
	}
}

func TestRequestBodyStream(t *testing.T) {
	d := NewRequest("POST", "https://example.com/upload")
	d.DataType = DataTypeStream
	d.Data = strings.NewReader("streamed")

	reader, contentType, formatted, err := d.body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if contentType != "" {
		t.Fatalf("expected no implied Content-Type for a stream body, got %q", contentType)
	}
	if formatted != "[STREAM]" {
		t.Fatalf("expected formatted body to be a placeholder, got %q", formatted)
	}

	buf, _ := io.ReadAll(reader)
	if string(buf) != "streamed" {
		t.Fatalf("expected the reader to be passed through unmodified, got %q", buf)
	}
}

func TestRequestBodyFormMultiValue(t *testing.T) {
	d := NewRequest("POST", "https://example.com/login")
	d.DataType = DataTypeForm
	d.Data = map[string][]string{"tag": {"a", "b"}}

	_, _, formatted, err := d.body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if formatted != "tag=a&tag=b" {
		t.Fatalf("unexpected formatted body: %q", formatted)
	}
}

func TestRequestBodyRejectsWrongDataShape(t *testing.T) {
	d := NewRequest("POST", "https://example.com/login")
	d.DataType = DataTypeForm
	d.Data = "not-a-map"

	if _, _, _, err := d.body(); err == nil {
		t.Fatalf("expected an error for mismatched Data shape")
	}
}

func TestRequestRedactedBodyScrubsSecret(t *testing.T) {
	d := NewRequest("POST", "https://example.com/login")
	d.DataType = DataTypeForm
	d.Data = map[string]string{"password": "hunter2"}
	d.Secrets = []string{"hunter2"}

	redacted, err := d.redactedBody()
	if err != nil {
		t.Fatalf("redactedBody: %v", err)
	}
	if strings.Contains(redacted, "hunter2") {
		t.Fatalf("expected secret to be redacted, got %q", redacted)
	}
}
