package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Payload is a read-only view over a result or params object.
// Fields are reached by explicit key; Decode maps the whole object onto a typed value.
type Payload struct {
	raw json.RawMessage
}

// NewPayload wraps raw JSON.
func NewPayload(raw json.RawMessage) Payload {
	return Payload{raw: raw}
}

// Raw returns the underlying JSON.
func (p Payload) Raw() json.RawMessage {
	return p.raw
}

// IsEmpty is true for an absent, null or {} payload.
func (p Payload) IsEmpty() bool {
	trimmed := bytes.TrimSpace(p.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if len(p.raw) == 0 {
		return nil
	}
	return json.Unmarshal(p.raw, v)
}

func (p Payload) object() (map[string]json.RawMessage, error) {
	if len(p.raw) == 0 {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(p.raw, &m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return m, nil
}

// Field returns the nested value stored under key.
func (p Payload) Field(key string) (Payload, bool) {
	m, err := p.object()
	if err != nil {
		return Payload{}, false
	}
	v, ok := m[key]
	if !ok {
		return Payload{}, false
	}
	return Payload{raw: v}, true
}

// Keys lists the object's keys in sorted order.
func (p Payload) Keys() []string {
	m, err := p.object()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns the string stored under key.
func (p Payload) GetString(key string) (string, bool) {
	var s string
	ok := p.decodeField(key, &s)
	return s, ok
}

// GetInt returns the integer stored under key.
func (p Payload) GetInt(key string) (int64, bool) {
	var n int64
	ok := p.decodeField(key, &n)
	return n, ok
}

// GetFloat returns the number stored under key.
func (p Payload) GetFloat(key string) (float64, bool) {
	var f float64
	ok := p.decodeField(key, &f)
	return f, ok
}

// GetBool returns the boolean stored under key.
func (p Payload) GetBool(key string) (bool, bool) {
	var b bool
	ok := p.decodeField(key, &b)
	return b, ok
}

func (p Payload) decodeField(key string, v any) bool {
	f, ok := p.Field(key)
	if !ok {
		return false
	}
	return json.Unmarshal(f.raw, v) == nil
}

// MarshalJSON emits the wrapped JSON unchanged.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p Payload) String() string {
	return string(p.raw)
}
