package relay

import (
	"bytes"
	"encoding/json"
)

// Body is an upstream response body decoded defensively: either a JSON value
// or the raw text when the upstream did not send JSON.
type Body struct {
	decoded json.RawMessage
	raw     string
}

// DecodeBody never fails. Invalid or empty JSON becomes a Raw body.
func DecodeBody(b []byte) Body {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return Body{decoded: json.RawMessage(append([]byte(nil), trimmed...))}
	}
	return Body{raw: string(b)}
}

// Decoded returns the JSON value when the body parsed.
func (b Body) Decoded() (json.RawMessage, bool) {
	return b.decoded, b.decoded != nil
}

// Raw returns the text of a body that did not parse.
func (b Body) Raw() (string, bool) {
	return b.raw, b.decoded == nil
}

// Text is the body as the upstream sent it.
func (b Body) Text() string {
	if b.decoded != nil {
		return string(b.decoded)
	}
	return b.raw
}

// MarshalJSON emits decoded bodies verbatim and wraps raw text as
// {"raw": "..."} so callers always receive an object-or-value.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.decoded != nil {
		return b.decoded, nil
	}
	return json.Marshal(map[string]string{"raw": b.raw})
}
