package normalize

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decode reads one JSON document keeping numbers as json.Number so large
// identifiers survive untouched.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

// Field returns v[key] when v is a JSON object, otherwise nil.
func Field(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// Path walks nested objects.
func Path(v any, keys ...string) any {
	for _, k := range keys {
		if v == nil {
			return nil
		}
		v = Field(v, k)
	}
	return v
}

// Index returns the i-th element of a JSON array, or nil.
func Index(v any, i int) any {
	arr, ok := v.([]any)
	if !ok || i < 0 || i >= len(arr) {
		return nil
	}
	return arr[i]
}

// FirstOf returns the first non-nil value.
func FirstOf(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Unwrap peels a ".data" or ".result" wrapper when present.
func Unwrap(v any) any {
	return FirstOf(Field(v, "data"), Field(v, "result"), v)
}

// Array accepts a bare array or an object wrapping one in ".data" or ".result".
func Array(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	for _, key := range []string{"data", "result"} {
		if arr, ok := Field(v, key).([]any); ok {
			return arr, true
		}
	}
	return nil, false
}
