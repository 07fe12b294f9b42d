package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one decoded request line.
type Message struct {
	Operation string
	fields    map[string]json.RawMessage
}

// Decode parses exactly one request line.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, fmt.Errorf("%w: empty line", ErrMalformedMessage)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	raw, ok := fields["operacao"]
	if !ok {
		return Message{}, fmt.Errorf("%w: missing operacao", ErrMalformedMessage)
	}
	var operation string
	if err := json.Unmarshal(raw, &operation); err != nil {
		return Message{}, fmt.Errorf("%w: operacao is not a string", ErrMalformedMessage)
	}

	return Message{Operation: strings.TrimSpace(operation), fields: fields}, nil
}

// NewMessage builds a message from already-decoded values. It is used by
// transports that do not speak the line protocol.
func NewMessage(operation string, fields map[string]any) (Message, error) {
	raw := make(map[string]json.RawMessage, len(fields)+1)
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return Message{}, fmt.Errorf("%w: field %s: %v", ErrMalformedMessage, key, err)
		}
		raw[key] = encoded
	}
	encoded, _ := json.Marshal(operation)
	raw["operacao"] = encoded
	return Message{Operation: operation, fields: raw}, nil
}

func (m Message) Has(key string) bool {
	raw, ok := m.fields[key]
	return ok && !isNull(raw)
}

func (m Message) raw(key string) (json.RawMessage, bool) {
	raw, ok := m.fields[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func (m Message) object(key string) (Message, bool) {
	raw, ok := m.raw(key)
	if !ok {
		return Message{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{}, false
	}
	return Message{Operation: m.Operation, fields: fields}, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
