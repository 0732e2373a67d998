package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// FieldState tells apart the ways a field can be absent from a field that
// holds a falsy value such as 0 or false.
type FieldState int

const (
	FieldMissing FieldState = iota
	FieldNull
	FieldEmpty
	FieldPresent
)

// Absent reports whether the field counts as not supplied: missing, null or
// the empty string.
func (s FieldState) Absent() bool {
	return s != FieldPresent
}

// Record is one uploaded row. Field order is kept as it arrived so that
// per-field diagnostics (unknown fields in particular) come out in a stable
// order.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a Record from a map. Go maps carry no order, so keys are
// sorted.
func NewRecord(fields map[string]any) Record {
	r := Record{values: make(map[string]any, len(fields))}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, fields[k])
	}
	return r
}

// Set assigns a field. New fields are appended to the field order; existing
// fields keep their position.
func (r *Record) Set(field string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[field]; !ok {
		r.keys = append(r.keys, field)
	}
	r.values[field] = value
}

// Field returns the raw value and its state.
func (r Record) Field(name string) (any, FieldState) {
	v, ok := r.values[name]
	if !ok {
		return nil, FieldMissing
	}
	if v == nil {
		return nil, FieldNull
	}
	if s, isString := v.(string); isString && s == "" {
		return v, FieldEmpty
	}
	return v, FieldPresent
}

// Keys returns the field names in arrival order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Record) Len() int {
	return len(r.keys)
}

// UnmarshalJSON decodes a JSON object keeping key order. Numbers are decoded
// as json.Number so that integer precision survives.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("record must be a json object")
	}

	*r = Record{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		r.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
