package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a generic ordered key/value payload. The shape of snapshot
// payloads is owned by the capture collaborator, not by this module, so the
// document only guarantees that keys round-trip through JSON in their
// original order and that nested objects, arrays, and scalars survive
// unchanged. Numbers are kept as json.Number to avoid float distortion.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{values: make(map[string]any)}
}

// Set stores a value under key, appending the key if it is new.
func (d *Document) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the key sequence in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// MarshalJSON emits the document as a JSON object in key insertion order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object, preserving key order. Nested objects
// become Documents, arrays become []any, numbers become json.Number.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document: expected object, got %v", tok)
	}
	doc, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// decodeObject consumes key/value pairs up to and including the closing '}'.
func decodeObject(dec *json.Decoder) (Document, error) {
	doc := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return doc, err
		}
		key, ok := tok.(string)
		if !ok {
			return doc, fmt.Errorf("document: expected key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return doc, err
		}
		doc.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return doc, err
	}
	return doc, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	var out []any
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("document: unexpected delimiter %v", t)
		}
	default:
		// string, json.Number, bool, or nil
		return tok, nil
	}
}
