package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errEmptyFrame = errors.New("codec: empty frame")

// JSONCodec encodes one JSON object per frame. HTML is not escaped, so
// expressions and DOM snippets go over the wire as written.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder terminates every value with a newline; a frame carries exactly one.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errEmptyFrame
	}
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}
