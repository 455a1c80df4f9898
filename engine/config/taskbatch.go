package config

import (
	"encoding/json"
	"fmt"
)

// TaskBatch is the undecoded form of one entry in the tasks document
// (SPEC_FULL.md §6.1, TaskBatchCfg). EndCondition and InitialState stay as
// raw JSON because their target types depend on the model bound into the
// engine at the call site; everything else is model-independent and fully
// decoded here.
type TaskBatch struct {
	EndCondition json.RawMessage
	InitialState json.RawMessage // nil when absent: caller uses the model's zero State

	Instances int
	Sync      int
	Backup    int

	SaveTrace      bool
	SaveModelState bool

	BatchCallback    json.RawMessage
	InstanceCallback json.RawMessage
	EventCallback    json.RawMessage
	Tweaks           json.RawMessage
}

func decodeTaskBatch(raw json.RawMessage, throwWrongType bool) (TaskBatch, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return TaskBatch{}, nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	d := newDecoder(fields, throwWrongType)

	var tb TaskBatch
	var err error

	if !d.has("end-condition") {
		return TaskBatch{}, nil, fmt.Errorf("%w: %q", ErrMissingField, "end-condition")
	}
	tb.EndCondition = optionalRaw(d, "end-condition")
	tb.InitialState = optionalRaw(d, "initial-state")

	if tb.Instances, err = optionalField(d, "instances", 1); err != nil {
		return TaskBatch{}, nil, err
	}
	if tb.Sync, err = optionalField(d, "sync", 0); err != nil {
		return TaskBatch{}, nil, err
	}
	if tb.Backup, err = optionalField(d, "backup", 0); err != nil {
		return TaskBatch{}, nil, err
	}
	if tb.SaveTrace, err = optionalField(d, "save-trace", true); err != nil {
		return TaskBatch{}, nil, err
	}
	if tb.SaveModelState, err = optionalField(d, "save-model-state", false); err != nil {
		return TaskBatch{}, nil, err
	}

	tb.BatchCallback = optionalRaw(d, "batch-callback")
	tb.InstanceCallback = optionalRaw(d, "callback")
	tb.EventCallback = optionalRaw(d, "event-callback")
	tb.Tweaks = optionalRaw(d, "tweaks")

	return tb, d.warnings, nil
}
