package engine

import (
	"encoding/json"
	"fmt"

	"github.com/karurochori/simkernel/callback"
	"github.com/karurochori/simkernel/model"
)

// Binding supplies the model-specific decode steps the engine cannot infer
// on its own: a Go program, unlike the source's templated simulator_t<M>,
// must fix its concrete State/ModelState/Delta types at compile time, so
// the caller (the CLI entrypoint) chooses which model family a given
// configuration document is decoded against.
type Binding[S, MS, D any] struct {
	// DecodeModel builds the Model descriptor from the (patched) model
	// document and the top-level tweaks document.
	DecodeModel func(modelDoc, tweaks json.RawMessage) (model.Model[S, MS, D], error)

	// DecodeTerminate builds a batch's termination predicate from its
	// end-condition document.
	DecodeTerminate func(endCondition json.RawMessage) (model.Terminate[S], error)

	// DecodeInitialState builds a batch's initial state from its
	// initial-state document, which may be nil when the batch omitted the
	// field.
	DecodeInitialState func(initialState json.RawMessage) (S, error)
}

// decodeCallback builds the built-in HTTP/shell callback from a raw
// callback document. A nil/empty document yields a nil Callback, which
// callers must treat as "no callback configured".
func decodeCallback(raw json.RawMessage) (callback.Callback, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var cfg callback.BuiltinConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("callback: %w", err)
	}
	return callback.Builtin(cfg), nil
}
