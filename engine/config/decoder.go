package config

import (
	"encoding/json"
	"fmt"
)

// decoder validates one JSON object's recognized fields against
// SPEC_FULL.md §4.5's type-mismatch policy: a field present with the wrong
// type is fatal if it is required or throwWrongType is set, and otherwise
// falls back to its default with a recorded warning.
type decoder struct {
	raw            map[string]json.RawMessage
	throwWrongType bool
	warnings       []string
}

func newDecoder(raw map[string]json.RawMessage, throwWrongType bool) *decoder {
	return &decoder{raw: raw, throwWrongType: throwWrongType}
}

func (d *decoder) has(key string) bool {
	_, ok := d.raw[key]
	return ok
}

func (d *decoder) warnf(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

// requireField decodes a required field, failing with ErrMissingField or
// ErrTypeMismatch.
func requireField[T any](d *decoder, key string) (T, error) {
	var zero T

	raw, ok := d.raw[key]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrMissingField, key)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: field %q: %v", ErrTypeMismatch, key, err)
	}
	return v, nil
}

// optionalField decodes an optional field, returning def when absent. A
// present-but-malformed value is fatal only under the type-mismatch policy;
// otherwise it is reported as a warning and def is used.
func optionalField[T any](d *decoder, key string, def T) (T, error) {
	raw, ok := d.raw[key]
	if !ok {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		if d.throwWrongType {
			return def, fmt.Errorf("%w: field %q: %v", ErrTypeMismatch, key, err)
		}
		d.warnf("field %q has the wrong type, using default: %v", key, err)
		return def, nil
	}
	return v, nil
}

// optionalRaw returns the field's raw JSON text, or nil if absent. It never
// fails: the caller is responsible for any further decoding of the payload.
func optionalRaw(d *decoder, key string) json.RawMessage {
	return d.raw[key]
}
