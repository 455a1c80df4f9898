// Package config parses and validates the engine's configuration document
// (SPEC_FULL.md §6.1, §4.5 "Construction" and "Type-mismatch policy").
//
// Decoding happens in two passes, a functional parse-then-validate idiom:
// first the raw JSON document is split into its
// recognized top-level fields without committing to Go types, then each
// field is converted with an explicit required/optional, default-carrying
// decode step that can honor the throw-wrong-type policy. Model-specific
// payloads (the model document, end-condition, initial-state) are left as
// json.RawMessage — only the caller, who knows which concrete model type is
// bound into the engine, can finish decoding them.
package config

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Config is the fully validated, model-agnostic engine configuration.
type Config struct {
	Continue  bool
	Workspace string

	// Model is the model document with any Patches already merged in,
	// still undecoded — SPEC_FULL.md §4.5 step 3.
	Model json.RawMessage

	Callback json.RawMessage
	Tweaks   json.RawMessage

	TaskOrder []string
	Tasks     map[string]TaskBatch

	Parallel       int
	ThrowWrongType bool
	Observer       string

	// Warnings accumulates every non-fatal type-mismatch diagnostic raised
	// while decoding, in encounter order, for the caller to log.
	Warnings []string
}

// Load parses and validates a configuration document.
func Load(data []byte) (*Config, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	// throw-wrong-type governs decoding of every other field, including
	// itself bootstrap under a permissive (false) policy.
	bootstrap := newDecoder(top, false)
	throwWrongType, err := optionalField(bootstrap, "throw-wrong-type", false)
	if err != nil {
		return nil, err
	}

	d := newDecoder(top, throwWrongType)
	cfg := &Config{ThrowWrongType: throwWrongType}

	if cfg.Continue, err = optionalField(d, "continue", false); err != nil {
		return nil, err
	}
	if cfg.Workspace, err = requireField[string](d, "workspace"); err != nil {
		return nil, err
	}

	if !d.has("model") {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "model")
	}
	modelDoc := optionalRaw(d, "model")

	var patches []json.RawMessage
	if d.has("patches") {
		var rawPatches []json.RawMessage
		if err := json.Unmarshal(top["patches"], &rawPatches); err != nil {
			if throwWrongType {
				return nil, fmt.Errorf("%w: field %q: %v", ErrTypeMismatch, "patches", err)
			}
			d.warnf("field %q has the wrong type, ignoring", "patches")
		} else {
			patches = rawPatches
		}
	}
	if cfg.Model, err = applyPatches(modelDoc, patches); err != nil {
		return nil, err
	}

	cfg.Callback = optionalRaw(d, "callback")
	cfg.Tweaks = optionalRaw(d, "tweaks")

	tasksDoc, ok := top["tasks"]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, "tasks")
	}
	order, fields, err := orderedObject(tasksDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrTypeMismatch, "tasks", err)
	}
	cfg.TaskOrder = order
	cfg.Tasks = make(map[string]TaskBatch, len(fields))
	for name, raw := range fields {
		tb, warnings, err := decodeTaskBatch(raw, throwWrongType)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: %w", name, err)
		}
		cfg.Tasks[name] = tb
		for _, w := range warnings {
			d.warnf("task batch %q: %s", name, w)
		}
	}

	if cfg.Parallel, err = optionalField(d, "parallel", runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}
	if cfg.Observer, err = optionalField(d, "observer", "slog"); err != nil {
		return nil, err
	}

	cfg.Warnings = d.warnings
	return cfg, nil
}
