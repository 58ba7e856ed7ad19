package apireq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a decoded JSON object that keeps its keys in document order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// DecodeError is returned when a non-empty body is not valid JSON.
type DecodeError struct {
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse JSON: %v", e.Err)
}

// Unwrap returns the underlying syntax error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errTrailingData = errors.New("unexpected data after top-level value")

// DecodeJSON decodes data keeping object key order.
//
// Objects decode to *Object, arrays to []any, numbers to json.Number and the
// remaining scalars to their encoding/json types.
func DecodeJSON(data []byte) (any, error) {
	var probe json.RawMessage

	err := json.Unmarshal(data, &probe)
	if err != nil {
		return nil, &DecodeError{Body: data, Err: err}
	}

	value, err := decodeValue(probe)
	if err != nil {
		return nil, &DecodeError{Body: data, Err: err}
	}

	return value, nil
}

func decodeValue(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	switch raw[0] {
	case '{':
		return decodeObject(raw)
	case '[':
		return decodeArray(raw)
	default:
		return decodeScalar(raw)
	}
}

func decodeObject(raw []byte) (*Object, error) {
	fields := orderedmap.New[string, json.RawMessage]()

	err := fields.UnmarshalJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}

	obj := NewObject()

	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		value, err := decodeValue(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", pair.Key, err)
		}

		obj.Set(pair.Key, value)
	}

	return obj, nil
}

func decodeArray(raw []byte) ([]any, error) {
	var items []json.RawMessage

	err := json.Unmarshal(raw, &items)
	if err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}

	out := make([]any, 0, len(items))

	for i, item := range items {
		value, err := decodeValue(item)
		if err != nil {
			return nil, fmt.Errorf("decoding item %d: %w", i, err)
		}

		out = append(out, value)
	}

	return out, nil
}

func decodeScalar(raw []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any

	err := decoder.Decode(&value)
	if err != nil {
		return nil, fmt.Errorf("decoding scalar: %w", err)
	}

	_, err = decoder.Token()
	if !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}

	return value, nil
}

// ObjectFromMap builds an ordered object from a plain map with keys in
// lexicographic order.
func ObjectFromMap(values map[string]any) *Object {
	obj := NewObject()

	for _, key := range sortedKeys(values) {
		obj.Set(key, values[key])
	}

	return obj
}

// toPlain converts ordered values into plain Go maps and slices.
func toPlain(value any) any {
	switch typed := value.(type) {
	case *Object:
		out := make(map[string]any, typed.Len())
		for pair := typed.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = toPlain(pair.Value)
		}

		return out
	case *Entity:
		return typed.ToMap()
	case []*Entity:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item.ToMap())
		}

		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, toPlain(item))
		}

		return out
	default:
		return value
	}
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
