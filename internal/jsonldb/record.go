package jsonldb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var errNotObject = errors.New("not a JSON object")

// Record is a JSON object whose key order survives a load and rewrite.
type Record struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, json.RawMessage]()}
}

// ParseRecord parses a single JSON object.
//
// Anything else, including valid JSON arrays or scalars, is an error.
func ParseRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	if r.fields == nil {
		return keys
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Get returns the JSON text of a field.
func (r *Record) Get(key string) (json.RawMessage, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// String returns the value of a field holding a JSON string.
//
// It returns false when the field is missing or holds any other JSON type.
func (r *Record) String(key string) (string, bool) {
	raw, ok := r.Get(key)
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Set encodes value and stores it under key.
//
// An existing field keeps its position; a new field is appended.
func (r *Record) Set(key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %q: %w", key, err)
	}
	r.setRaw(key, data)
	return nil
}

// SetRaw stores JSON text under key. The text is validated and rewritten
// compactly with strings re-encoded without HTML escaping. Key order and number
// text are kept.
func (r *Record) SetRaw(key string, value json.RawMessage) error {
	data, err := reencode(value)
	if err != nil {
		return fmt.Errorf("invalid JSON for field %q: %w", key, err)
	}
	r.setRaw(key, data)
	return nil
}

func (r *Record) setRaw(key string, value json.RawMessage) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, json.RawMessage]()
	}
	r.fields.Set(key, value)
}

// Update copies every field of other into r, in other's order.
func (r *Record) Update(other *Record) {
	if other == nil || other.fields == nil {
		return
	}
	for pair := other.fields.Oldest(); pair != nil; pair = pair.Next() {
		r.setRaw(pair.Key, bytes.Clone(pair.Value))
	}
}

// MarshalJSON writes the fields in order without HTML escaping.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.fields != nil {
		first := true
		for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := encode(pair.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if len(pair.Value) == 0 {
				buf.WriteString("null")
			} else {
				buf.Write(pair.Value)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the record with the JSON object in data.
func (r *Record) UnmarshalJSON(data []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	dec := json.NewDecoder(&buf)
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errNotObject
	}
	fields := orderedmap.New[string, json.RawMessage]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		fields.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after object")
	}
	r.fields = fields
	return nil
}

// encode marshals v as compact JSON without HTML escaping.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// reencode rewrites a single JSON value token by token.
func reencode(data []byte) ([]byte, error) {
	type level struct {
		object bool
		n      int
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var buf bytes.Buffer
	var stack []level
	done := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			buf.WriteByte(byte(d))
			stack = stack[:len(stack)-1]
			done = len(stack) == 0
			continue
		}
		if len(stack) == 0 {
			if done {
				return nil, errors.New("unexpected data after value")
			}
		} else {
			top := &stack[len(stack)-1]
			switch {
			case top.object && top.n%2 == 1:
				buf.WriteByte(':')
			case top.n > 0:
				buf.WriteByte(',')
			}
			top.n++
		}
		switch v := tok.(type) {
		case json.Delim:
			buf.WriteByte(byte(v))
			stack = append(stack, level{object: v == '{'})
			continue
		case json.Number:
			buf.WriteString(v.String())
		case string:
			s, err := encode(v)
			if err != nil {
				return nil, err
			}
			buf.Write(s)
		case bool:
			if v {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
		case nil:
			buf.WriteString("null")
		default:
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		done = len(stack) == 0
	}
	if !done {
		return nil, errors.New("incomplete JSON value")
	}
	return buf.Bytes(), nil
}
