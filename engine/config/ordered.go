package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedObject walks a JSON object token-by-token to recover its key
// insertion order, which a plain map[string]json.RawMessage unmarshal would
// discard. The engine needs this for the tasks document: SPEC_FULL.md §4.3
// enumerates batches in a stable, caller-visible order, and that order is
// the order the batches appeared in the configuration document.
func orderedObject(raw json.RawMessage) (order []string, fields map[string]json.RawMessage, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	fields = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}

		order = append(order, key)
		fields[key] = value
	}

	return order, fields, nil
}
