package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformedFrame is returned for lines that are not UTF-8 JSON objects or
// whose username/message fields are non-empty values other than strings.
var ErrMalformedFrame = errors.New("malformed frame")

// EncodeFrame renders m as one compact JSON line terminated by '\n'.
// Non-ASCII text is written as-is.
func EncodeFrame(m ChatMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame parses one frame line. Absent fields and empty values (null,
// false, 0, [] or {}) decode as empty strings; the result is trimmed.
func DecodeFrame(line []byte) (ChatMessage, error) {
	if !utf8.Valid(line) {
		return ChatMessage{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformedFrame)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if obj == nil {
		// the literal null
		return ChatMessage{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}
	username, err := stringField(obj, "username")
	if err != nil {
		return ChatMessage{}, err
	}
	msg, err := stringField(obj, "message")
	if err != nil {
		return ChatMessage{}, err
	}
	return ChatMessage{Username: username, Message: msg}.Trimmed(), nil
}

func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: field %q: %v", ErrMalformedFrame, key, err)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	if isEmptyValue(v) {
		return "", nil
	}
	return "", fmt.Errorf("%w: field %q is not a string", ErrMalformedFrame, key)
}

func isEmptyValue(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}
