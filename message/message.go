// Package message defines the frames exchanged with a remotely debuggable process.
//
// Every inbound frame decodes into a Message. Its shape decides how the client treats it:
//
//   - Response: {"id": 7, "result": {...}} or {"id": 7, "error": {...}}
//   - Event:    {"method": "Page.loadEventFired", "params": {...}}
//
// A frame that carries an id is always a response, even if it also carries a method.
package message

import (
	"encoding/json"
	"fmt"
)

// Message is one decoded inbound frame.
type Message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// IsResponse reports whether the message answers a command.
func (m *Message) IsResponse() bool {
	return m.ID != nil
}

// IsEvent reports whether the message is an unsolicited notification.
func (m *Message) IsEvent() bool {
	return m.ID == nil && m.Method != ""
}

// HasID reports whether the message is the response to the command with the given id.
func (m *Message) HasID(id int64) bool {
	return m.ID != nil && *m.ID == id
}

// Command is an outbound request. Params is always a JSON object on the wire.
type Command struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// NewCommand marshals params into a Command. Nil params become an empty object.
func NewCommand(id int64, method string, params any) (*Command, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Command{ID: id, Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return p, nil
	case Payload:
		if p.IsEmpty() {
			return json.RawMessage(`{}`), nil
		}
		return p.Raw(), nil
	}
	return json.Marshal(params)
}

// RPCError is the error object carried by a failed response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("code %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// NewResponse builds the response frame for a command.
func NewResponse(id int64, result any) (*Message, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	return &Message{ID: &id, Result: raw}, nil
}

// NewErrorResponse builds a failed response frame for a command.
func NewErrorResponse(id int64, code int, msg string) *Message {
	return &Message{ID: &id, Error: &RPCError{Code: code, Message: msg}}
}

// NewEvent builds an event frame.
func NewEvent(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{Method: method, Params: raw}, nil
}
