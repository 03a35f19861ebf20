// Package spec implements specification dictionaries: ordered key-value
// mappings which describe how a module should be constructed. Nested
// sub-specifications are stored as *Dict values.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/exp/slices"
)

// Dict is an ordered specification dictionary. Keys are iterated and
// serialized in the order in which they were first inserted.
type Dict struct {
	keys   []string
	values map[string]interface{}
}

// New returns a new Dict. Key-value pairs may be given as alternating
// arguments, New("type", "adam", "learning_rate", 1e-3), and are
// inserted in order. New panics if a key is not a string or if an
// odd number of arguments is given.
func New(pairs ...interface{}) *Dict {
	if len(pairs)%2 != 0 {
		panic("new: key-value pairs must have even length")
	}

	d := &Dict{values: make(map[string]interface{}, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("new: key %v is not a string", pairs[i]))
		}
		d.Set(key, pairs[i+1])
	}
	return d
}

// Set sets the value of key. A new key is appended after all
// existing keys, an existing key keeps its position.
func (d *Dict) Set(key string, value interface{}) {
	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored at key and whether the key exists
func (d *Dict) Get(key string) (interface{}, bool) {
	value, ok := d.values[key]
	return value, ok
}

// Has returns whether the Dict contains key
func (d *Dict) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Delete removes key from the Dict, if present
func (d *Dict) Delete(key string) {
	if !d.Has(key) {
		return
	}
	delete(d.values, key)
	index := slices.Index(d.keys, key)
	d.keys = slices.Delete(d.keys, index, index+1)
}

// Keys returns the keys of the Dict in insertion order
func (d *Dict) Keys() []string {
	return slices.Clone(d.keys)
}

// Len returns the number of keys in the Dict
func (d *Dict) Len() int {
	return len(d.keys)
}

// Sub returns the nested specification stored at key
func (d *Dict) Sub(key string) (*Dict, bool) {
	value, ok := d.values[key]
	if !ok {
		return nil, false
	}
	sub, ok := value.(*Dict)
	return sub, ok
}

// Equal returns whether two Dicts have the same keys in the same order
// with deeply equal values
func (d *Dict) Equal(other *Dict) bool {
	if d.Len() != other.Len() {
		return false
	}

	for i, key := range d.keys {
		if other.keys[i] != key {
			return false
		}

		value, otherValue := d.values[key], other.values[key]
		if sub, ok := value.(*Dict); ok {
			otherSub, ok := otherValue.(*Dict)
			if !ok || !sub.Equal(otherSub) {
				return false
			}
		} else if !reflect.DeepEqual(value, otherValue) {
			return false
		}
	}
	return true
}

// String implements the fmt.Stringer interface
func (d *Dict) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("Dict%v", d.keys)
	}
	return string(data)
}

// MarshalJSON implements the json.Marshaler interface. Keys are
// written in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("marshalJSON: could not marshal key %v: %v",
				key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(d.values[key])
		if err != nil {
			return nil, fmt.Errorf("marshalJSON: could not marshal value "+
				"of %v: %v", key, err)
		}
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. Keys are
// inserted in document order and nested objects become nested Dicts.
// Numbers are decoded as float64.
func (d *Dict) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("unmarshalJSON: expected object, got %v", tok)
	}

	decoded, err := decodeObject(dec)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	*d = *decoded
	return nil
}

// decodeObject decodes the remainder of a JSON object whose opening
// delimiter has already been consumed
func decodeObject(dec *json.Decoder) (*Dict, error) {
	d := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", tok)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %v: %v", key, err)
		}
		d.Set(key, value)
	}

	// Closing delimiter
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return d, nil
}

// decodeValue decodes the next JSON value
func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		return decodeObject(dec)

	case '[':
		values := []interface{}{}
		for dec.More() {
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return values, nil
	}

	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// Int returns the integer stored at key, or def if the key is missing
// or nil. Whole float64 values, as decoded from JSON, are accepted.
func (d *Dict) Int(key string, def int) (int, error) {
	value, ok := d.Get(key)
	if !ok || value == nil {
		return def, nil
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("int: key %v is not an integer (%v)", key, v)
		}
		return int(v), nil
	}
	return 0, fmt.Errorf("int: key %v is not an integer (%T)", key, value)
}

// Str returns the string stored at key, or def if the key is
// missing or nil
func (d *Dict) Str(key, def string) (string, error) {
	value, ok := d.Get(key)
	if !ok || value == nil {
		return def, nil
	}

	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("str: key %v is not a string (%T)", key, value)
	}
	return s, nil
}

// Strings returns the strings stored at key. A single string is
// returned as a one-element slice.
func (d *Dict) Strings(key string, def []string) ([]string, error) {
	value, ok := d.Get(key)
	if !ok || value == nil {
		return def, nil
	}

	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return slices.Clone(v), nil
	case []interface{}:
		out := make([]string, len(v))
		for i := range v {
			s, ok := v[i].(string)
			if !ok {
				return nil, fmt.Errorf("strings: key %v holds non-string "+
					"%v", key, v[i])
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("strings: key %v is not a list of strings (%T)",
		key, value)
}
