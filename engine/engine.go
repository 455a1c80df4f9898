// Package engine implements the engine orchestrator (SPEC_FULL.md §4.5,
// C5): it turns a validated configuration document and a model Binding into
// a batch.Set, drives it through the worker pool, and fires the global
// callback on completion. Grounded on kernel/kernel.go's constructor shape
// (validate config, build dependent subsystems, expose one Run method).
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/karurochori/simkernel/batch"
	"github.com/karurochori/simkernel/engine/config"
	"github.com/karurochori/simkernel/model"
	"github.com/karurochori/simkernel/observability"
	"github.com/karurochori/simkernel/pool"
)

// Engine is a fully constructed, ready-to-run instance of the simulation
// harness for one model family S/MS/D.
type Engine[S, MS, D any] struct {
	cfg      *config.Config
	set      batch.Set[S, MS, D]
	m        model.Model[S, MS, D]
	global   func(ctx context.Context) error
	runID    string
	out      io.Writer
	err      io.Writer
	observer observability.Observer
}

// New validates cfg's model-specific fields through binding and assembles
// the batch set the engine will run. Workspace creation happens here
// (SPEC_FULL.md §4.5 step 2): if cfg.Continue is false, the directory tree
// is created; if true, it is assumed to already exist from a prior run.
func New[S, MS, D any](cfg *config.Config, binding Binding[S, MS, D], opts ...Option) (*Engine[S, MS, D], error) {
	o := options{out: os.Stdout, err: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		observer, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObserverUnknown, err)
		}
		o.observer = observer
	}
	if o.runID == "" {
		o.runID = generateRunID()
	}

	if !cfg.Continue {
		if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrWorkspaceCreate, cfg.Workspace, err)
		}
	}

	m, err := binding.DecodeModel(cfg.Model, cfg.Tweaks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelDecode, err)
	}

	globalCallback, err := decodeCallback(cfg.Callback)
	if err != nil {
		return nil, fmt.Errorf("global %w", err)
	}

	set := batch.Set[S, MS, D]{
		Order:   append([]string(nil), cfg.TaskOrder...),
		Batches: make(map[string]batch.Batch[S, MS, D], len(cfg.Tasks)),
	}
	for _, name := range cfg.TaskOrder {
		tb := cfg.Tasks[name]

		terminate, err := binding.DecodeTerminate(tb.EndCondition)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: end-condition: %w", name, err)
		}
		initial, err := binding.DecodeInitialState(tb.InitialState)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: initial-state: %w", name, err)
		}
		batchCb, err := decodeCallback(tb.BatchCallback)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: batch-%w", name, err)
		}
		instanceCb, err := decodeCallback(tb.InstanceCallback)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: instance-%w", name, err)
		}
		eventCb, err := decodeCallback(tb.EventCallback)
		if err != nil {
			return nil, fmt.Errorf("task batch %q: event-%w", name, err)
		}

		set.Batches[name] = batch.Batch[S, MS, D]{
			Name:             name,
			InitialState:     initial,
			Terminate:        terminate,
			Instances:        tb.Instances,
			Sync:             tb.Sync,
			Backup:           tb.Backup,
			SaveTrace:        tb.SaveTrace,
			SaveModelState:   tb.SaveModelState,
			BatchCallback:    batchCb,
			InstanceCallback: instanceCb,
			EventCallback:    eventCb,
		}
	}

	var global func(ctx context.Context) error
	if globalCallback != nil {
		global = func(ctx context.Context) error {
			return globalCallback(ctx, model.StepContext{RunID: o.runID})
		}
	}

	return &Engine[S, MS, D]{
		cfg:      cfg,
		set:      set,
		m:        m,
		global:   global,
		runID:    o.runID,
		out:      o.out,
		err:      o.err,
		observer: o.observer,
	}, nil
}

// Run drives the pool to completion and fires the global callback
// (SPEC_FULL.md §4.5 "Invocation"). It returns the pool's failure count and
// a non-nil error only if the global callback itself fails.
func (e *Engine[S, MS, D]) Run(ctx context.Context) (int, error) {
	e.observer.OnEvent(ctx, observability.Event{
		Type:      observability.EventEngineStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "engine.Run",
		Data:      map[string]any{"run_id": e.runID},
	})

	enumerator := batch.Enumerate(e.runID, e.cfg.Workspace, e.cfg.Continue, e.set, e.m, e.observer)

	failures := pool.Run(ctx, pool.Config{
		ParallelMax: e.cfg.Parallel,
		Out:         e.out,
		Err:         e.err,
		Observer:    e.observer,
		Verbose:     true,
	}, enumerator)

	var callbackErr error
	if e.global != nil {
		callbackErr = e.global(ctx)
	}

	e.observer.OnEvent(ctx, observability.Event{
		Type:      observability.EventEngineComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "engine.Run",
		Data: map[string]any{
			"run_id":   e.runID,
			"failures": failures,
		},
	})

	return failures, callbackErr
}

// RunID returns the identifier assigned to this engine instance, as stamped
// into its start/complete events and its callbacks' StepContext.
func (e *Engine[S, MS, D]) RunID() string {
	return e.runID
}
